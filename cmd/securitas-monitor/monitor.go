package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	securitas "github.com/homesec-labs/securitas-direct"
)

//go:embed index.html
var index []byte

var indexTpl = template.Must(template.New("index").Parse(string(index)))

// armStates are the state names accepted by the /arm endpoint.
var armStates = map[string]securitas.AlarmState{
	"total":     securitas.TotalArmed,
	"interior":  securitas.InteriorTotal,
	"day":       securitas.InteriorPartial,
	"night":     securitas.NightArmed,
	"perimeter": securitas.ExteriorArmed,
}

type sentinelReading struct {
	Alias       string
	Temperature int
	Humidity    int
	AirQuality  string
}

type installationView struct {
	Number    string
	Alias     string
	State     string
	Message   string
	UpdatedAt time.Time
	Sentinels []sentinelReading
}

type monitor struct {
	cli  *securitas.Client
	cfg  Config
	inst []securitas.Installation

	mu    sync.RWMutex
	views map[string]*installationView
}

func newMonitor(cli *securitas.Client, cfg Config, installations []securitas.Installation) *monitor {
	views := map[string]*installationView{}
	for _, inst := range installations {
		views[inst.Number] = &installationView{
			Number: inst.Number,
			Alias:  inst.Alias,
			State:  "unknown",
		}
	}
	return &monitor{cli: cli, cfg: cfg, inst: installations, views: views}
}

func (m *monitor) loop(ctx context.Context) {
	m.scan(ctx)
	tick := time.NewTicker(m.cfg.ScanInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			m.scan(ctx)
		}
	}
}

func (m *monitor) scan(ctx context.Context) {
	scanCounter.Inc()
	for _, inst := range m.inst {
		if err := m.scanInstallation(ctx, inst); err != nil {
			scanErrorCounter.Inc()
			log.Error("scan failed", "numinst", inst.Number, "err", err)
		}
	}
}

func (m *monitor) scanInstallation(ctx context.Context, inst securitas.Installation) error {
	protom, msg, err := m.alarmState(ctx, inst)
	if err != nil {
		return err
	}
	if protom == "" {
		// a command owns the installation right now, keep the last view.
		return nil
	}
	alarmStateGauge.WithLabelValues(inst.Number).Set(stateValue(protom))
	m.update(inst.Number, func(view *installationView) {
		view.State = securitas.ProtomState(protom)
		view.Message = msg
		view.UpdatedAt = time.Now()
	})
	log.Debug("scanned", "numinst", inst.Number, "state", securitas.ProtomState(protom))

	var readings []sentinelReading
	for _, svc := range inst.Sentinels {
		sentinel, err := m.cli.SentinelData(ctx, inst, svc)
		if err != nil {
			log.Error("could not read sentinel", "numinst", inst.Number, "err", err)
			continue
		}
		reading := sentinelReading{
			Alias:       sentinel.Alias,
			Temperature: sentinel.Temperature,
			Humidity:    sentinel.Humidity,
		}
		temperatureGauge.
			WithLabelValues(inst.Number, sentinel.Alias).
			Set(float64(sentinel.Temperature))
		humidityGauge.
			WithLabelValues(inst.Number, sentinel.Alias).
			Set(float64(sentinel.Humidity))

		if air, err := m.cli.AirQualityData(ctx, inst, svc); err == nil {
			reading.AirQuality = air.Message
			airQualityGauge.
				WithLabelValues(inst.Number, sentinel.Alias).
				Set(float64(air.Current))
		}
		readings = append(readings, reading)
	}
	m.update(inst.Number, func(view *installationView) {
		view.Sentinels = readings
	})
	return nil
}

// alarmState reads the panel state: the poll-driven CheckAlarm cycle
// when panel verification is on, the cheap Status read otherwise.
func (m *monitor) alarmState(ctx context.Context, inst securitas.Installation) (string, string, error) {
	if !m.cfg.CheckAlarmPanel {
		status, err := m.cli.LastKnownStatus(ctx, inst)
		if err != nil {
			return "", "", err
		}
		return status.Status, "", nil
	}

	cmd, err := m.cli.CheckAlarm(ctx, inst)
	if err != nil {
		var busy *securitas.CommandInProgressError
		if errors.As(err, &busy) {
			log.Debug("command in progress, skipping check", "numinst", inst.Number)
			return "", "", nil
		}
		return "", "", err
	}
	outcome, err := m.cli.Wait(ctx, cmd)
	if err != nil {
		return "", "", err
	}
	if outcome.State != securitas.CommandConfirmed {
		return "", "", fmt.Errorf("panel check ended %s", outcome.State)
	}
	return outcome.Status.ProtomResponse, outcome.Status.Msg, nil
}

func (m *monitor) update(numinst string, fn func(*installationView)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if view, ok := m.views[numinst]; ok {
		fn(view)
	}
}

func (m *monitor) handleIndex(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	var views []installationView
	for _, inst := range m.inst {
		views = append(views, *m.views[inst.Number])
	}
	m.mu.RUnlock()

	_ = indexTpl.Execute(w, struct {
		Installations []installationView
	}{Installations: views})
}

// handleCommand serves /arm and /disarm. Requests carry the target
// state, the optional installation number, and the local PIN when one
// is configured.
func (m *monitor) handleCommand(arm bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		if !m.cfg.checkPIN(r.FormValue("pin")) {
			http.Error(w, "bad pin", http.StatusForbidden)
			return
		}
		inst, ok := m.installation(r.FormValue("numinst"))
		if !ok {
			http.Error(w, "unknown installation", http.StatusNotFound)
			return
		}

		state := securitas.TotalDisarmed
		if arm {
			state, ok = armStates[r.FormValue("state")]
			if !ok {
				http.Error(w, "unknown state", http.StatusBadRequest)
				return
			}
		}
		req, err := inst.Request(state)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		issue := m.cli.Arm
		if !arm {
			issue = m.cli.Disarm
		}
		cmd, err := issue(r.Context(), inst, req)
		if err != nil {
			var busy *securitas.CommandInProgressError
			if errors.As(err, &busy) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			commandCounter.WithLabelValues("error").Inc()
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		outcome, err := m.cli.Wait(r.Context(), cmd)
		if err != nil {
			commandCounter.WithLabelValues("error").Inc()
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		commandCounter.WithLabelValues(strings.ToLower(outcome.State.String())).Inc()
		log.Info(
			"command finished",
			"numinst", inst.Number,
			"request", req,
			"outcome", outcome.State,
		)
		fmt.Fprintf(w, "%s: %s\n", outcome.State, securitas.ProtomState(outcome.Status.ProtomResponse))
	}
}

func (m *monitor) installation(numinst string) (securitas.Installation, bool) {
	if numinst == "" {
		return m.inst[0], true
	}
	for _, inst := range m.inst {
		if inst.Number == numinst {
			return inst, true
		}
	}
	return securitas.Installation{}, false
}
