// Package config holds the controller's settings. Defaults reproduce the
// reference deployment; a TOML file, TEMP_ACTUATOR_* environment variables
// and command-line flags may override them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for the reference deployment.
const (
	DefaultProcedure   = "/Library/Yahoo/Weather/GetTemperature"
	DefaultProfile     = "newone2"
	DefaultAddress     = "Bakersfield, CA 93304"
	DefaultInterval    = 30 * time.Second
	DefaultTimeout     = 300 * time.Second
	DefaultMaxRuns     = 10
	DefaultPin         = 13
	DefaultThreshold   = 55
	DefaultField       = "Temperature"
	DefaultMaxFieldLen = 64
	DefaultTransport   = "tls"
	DefaultGPIOBackend = "sysfs"
	DefaultGPIOChip    = "gpiochip0"
	DefaultHTTPAddr    = ":8080"
)

const (
	configName = "temp-actuator"
	configType = "toml"
	envPrefix  = "TEMP_ACTUATOR"
)

// Config is the full controller configuration.
type Config struct {
	Account  Account  `mapstructure:"account" toml:"account"`
	Choreo   Choreo   `mapstructure:"choreo" toml:"choreo"`
	Schedule Schedule `mapstructure:"schedule" toml:"schedule"`
	Actuator Actuator `mapstructure:"actuator" toml:"actuator"`
	GPIO     GPIO     `mapstructure:"gpio" toml:"gpio"`
	MQTT     MQTT     `mapstructure:"mqtt" toml:"mqtt"`
	HTTPAddr string   `mapstructure:"http_addr" toml:"http_addr"`
}

// Account holds the remote account credentials.
type Account struct {
	Name       string `mapstructure:"name" toml:"name"`
	AppKeyName string `mapstructure:"app_key_name" toml:"app_key_name"`
	AppKey     string `mapstructure:"app_key" toml:"app_key"`
}

// Choreo describes the invocation issued each cycle.
type Choreo struct {
	Procedure   string        `mapstructure:"procedure" toml:"procedure"`
	Profile     string        `mapstructure:"profile" toml:"profile"`
	Address     string        `mapstructure:"address" toml:"address"`
	Timeout     time.Duration `mapstructure:"timeout" toml:"timeout"`
	Transport   string        `mapstructure:"transport" toml:"transport"`
	CAFile      string        `mapstructure:"ca_file" toml:"ca_file"`
	BaseURL     string        `mapstructure:"base_url" toml:"base_url"`
	MaxFieldLen int           `mapstructure:"max_field_len" toml:"max_field_len"`
}

// Schedule bounds invocation frequency and count.
type Schedule struct {
	Interval time.Duration `mapstructure:"interval" toml:"interval"`
	MaxRuns  int           `mapstructure:"max_runs" toml:"max_runs"`
}

// Actuator is the threshold rule.
type Actuator struct {
	Pin       int    `mapstructure:"pin" toml:"pin"`
	Threshold int    `mapstructure:"threshold" toml:"threshold"`
	Field     string `mapstructure:"field" toml:"field"`
}

// GPIO selects the pin backend.
type GPIO struct {
	Backend   string `mapstructure:"backend" toml:"backend"` // "sysfs" or "cdev"
	SysfsRoot string `mapstructure:"sysfs_root" toml:"sysfs_root"`
	Chip      string `mapstructure:"chip" toml:"chip"`
}

// MQTT configures event publishing. An empty broker disables it.
type MQTT struct {
	Broker   string `mapstructure:"broker" toml:"broker"`
	ClientID string `mapstructure:"client_id" toml:"client_id"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("account.name", "")
	v.SetDefault("account.app_key_name", "")
	v.SetDefault("account.app_key", "")
	v.SetDefault("choreo.procedure", DefaultProcedure)
	v.SetDefault("choreo.profile", DefaultProfile)
	v.SetDefault("choreo.address", DefaultAddress)
	v.SetDefault("choreo.timeout", DefaultTimeout)
	v.SetDefault("choreo.transport", DefaultTransport)
	v.SetDefault("choreo.ca_file", "")
	v.SetDefault("choreo.base_url", "")
	v.SetDefault("choreo.max_field_len", DefaultMaxFieldLen)
	v.SetDefault("schedule.interval", DefaultInterval)
	v.SetDefault("schedule.max_runs", DefaultMaxRuns)
	v.SetDefault("actuator.pin", DefaultPin)
	v.SetDefault("actuator.threshold", DefaultThreshold)
	v.SetDefault("actuator.field", DefaultField)
	v.SetDefault("gpio.backend", DefaultGPIOBackend)
	v.SetDefault("gpio.sysfs_root", "/sys/class/gpio")
	v.SetDefault("gpio.chip", DefaultGPIOChip)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "temp-actuator")
	v.SetDefault("http_addr", DefaultHTTPAddr)
}

// Load reads configuration into a Config. If file is set it must exist;
// otherwise temp-actuator.toml is looked up in the working directory and
// /etc/temp-actuator and is optional.
func Load(v *viper.Viper, file string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/temp-actuator")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the controller cannot run with. Credentials are
// checked when the session is created.
func (c Config) Validate() error {
	var errs []error
	if c.Choreo.Procedure == "" {
		errs = append(errs, errors.New("choreo.procedure is empty"))
	}
	if c.Choreo.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("choreo.timeout must be positive, got %v", c.Choreo.Timeout))
	}
	if c.Choreo.MaxFieldLen < 2 {
		errs = append(errs, fmt.Errorf("choreo.max_field_len must be at least 2, got %d", c.Choreo.MaxFieldLen))
	}
	if c.Schedule.Interval <= 0 {
		errs = append(errs, fmt.Errorf("schedule.interval must be positive, got %v", c.Schedule.Interval))
	}
	if c.Schedule.MaxRuns <= 0 {
		errs = append(errs, fmt.Errorf("schedule.max_runs must be positive, got %d", c.Schedule.MaxRuns))
	}
	if c.Actuator.Pin < 0 {
		errs = append(errs, fmt.Errorf("actuator.pin must not be negative, got %d", c.Actuator.Pin))
	}
	if c.Actuator.Field == "" {
		errs = append(errs, errors.New("actuator.field is empty"))
	}
	switch c.GPIO.Backend {
	case "sysfs", "cdev":
	default:
		errs = append(errs, fmt.Errorf("gpio.backend must be sysfs or cdev, got %q", c.GPIO.Backend))
	}
	switch c.Choreo.Transport {
	case "plain", "tls":
	default:
		errs = append(errs, fmt.Errorf("choreo.transport must be plain or tls, got %q", c.Choreo.Transport))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy with the app key masked, for display.
func (c Config) Redacted() Config {
	if c.Account.AppKey != "" {
		c.Account.AppKey = "********"
	}
	return c
}
