package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var alarmStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace:   "securitas",
	Subsystem:   "alarm",
	Name:        "state",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"numinst"})

var temperatureGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace:   "securitas",
	Subsystem:   "sentinel",
	Name:        "temperature_celsius",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"numinst", "alias"})

var humidityGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace:   "securitas",
	Subsystem:   "sentinel",
	Name:        "humidity_percent",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"numinst", "alias"})

var airQualityGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace:   "securitas",
	Subsystem:   "sentinel",
	Name:        "air_quality",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"numinst", "alias"})

var scanCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace:   "securitas",
	Subsystem:   "monitor",
	Name:        "scans_total",
	Help:        "",
	ConstLabels: map[string]string{},
})

var scanErrorCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace:   "securitas",
	Subsystem:   "monitor",
	Name:        "scan_errors_total",
	Help:        "",
	ConstLabels: map[string]string{},
})

var commandCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace:   "securitas",
	Subsystem:   "monitor",
	Name:        "commands_total",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"result"})

// stateValue flattens the panel's letter codes for the state gauge.
func stateValue(protom string) float64 {
	switch protom {
	case "D":
		return 0
	case "P":
		return 1
	case "Q":
		return 2
	case "T":
		return 3
	case "E", "B", "C", "A":
		return 4
	default:
		return -1
	}
}
