package config

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// rendered mirrors Config with durations as strings, so the output reads
// "30s" rather than nanoseconds and loads back through Load.
type rendered struct {
	Account  Account        `toml:"account"`
	Choreo   renderedChoreo `toml:"choreo"`
	Schedule struct {
		Interval string `toml:"interval"`
		MaxRuns  int    `toml:"max_runs"`
	} `toml:"schedule"`
	Actuator Actuator `toml:"actuator"`
	GPIO     GPIO     `toml:"gpio"`
	MQTT     MQTT     `toml:"mqtt"`
	HTTPAddr string   `toml:"http_addr"`
}

type renderedChoreo struct {
	Procedure   string `toml:"procedure"`
	Profile     string `toml:"profile"`
	Address     string `toml:"address"`
	Timeout     string `toml:"timeout"`
	Transport   string `toml:"transport"`
	CAFile      string `toml:"ca_file"`
	BaseURL     string `toml:"base_url"`
	MaxFieldLen int    `toml:"max_field_len"`
}

// Render encodes c as TOML in the format Load reads.
func Render(c Config) ([]byte, error) {
	var r rendered
	r.Account = c.Account
	r.Choreo = renderedChoreo{
		Procedure:   c.Choreo.Procedure,
		Profile:     c.Choreo.Profile,
		Address:     c.Choreo.Address,
		Timeout:     c.Choreo.Timeout.String(),
		Transport:   c.Choreo.Transport,
		CAFile:      c.Choreo.CAFile,
		BaseURL:     c.Choreo.BaseURL,
		MaxFieldLen: c.Choreo.MaxFieldLen,
	}
	r.Schedule.Interval = c.Schedule.Interval.String()
	r.Schedule.MaxRuns = c.Schedule.MaxRuns
	r.Actuator = c.Actuator
	r.GPIO = c.GPIO
	r.MQTT = c.MQTT
	r.HTTPAddr = c.HTTPAddr

	data, err := toml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
