package main

import (
	"crypto/subtle"
	"time"

	securitas "github.com/homesec-labs/securitas-direct"
)

type Config struct {
	Username        string        `env:"USERNAME,notEmpty"`
	Password        string        `env:"PASSWORD,notEmpty"`
	Country         string        `env:"COUNTRY"           envDefault:"ES"`
	PIN             string        `env:"PIN"`
	OTP             bool          `env:"OTP"               envDefault:"true"`
	CheckAlarmPanel bool          `env:"CHECK_ALARM_PANEL" envDefault:"true"`
	ScanInterval    time.Duration `env:"SCAN_INTERVAL"     envDefault:"60s"`
	PollInterval    time.Duration `env:"POLL_INTERVAL"     envDefault:"2s"`
	PollAttempts    int           `env:"POLL_ATTEMPTS"     envDefault:"30"`
	Force           bool          `env:"FORCE"`
	Address         string        `env:"LISTEN"            envDefault:":8486"`
	Debug           bool          `env:"DEBUG"`
}

func (c Config) pollPolicy() securitas.PollPolicy {
	return securitas.PollPolicy{
		Interval:     c.PollInterval,
		MaxAttempts:  c.PollAttempts,
		AllowForcing: c.Force,
	}
}

// checkPIN gates local arm/disarm requests. The PIN never leaves the
// process; an empty configured PIN disables the gate.
func (c Config) checkPIN(got string) bool {
	if c.PIN == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(c.PIN), []byte(got)) == 1
}
