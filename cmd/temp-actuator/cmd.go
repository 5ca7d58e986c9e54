package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sweeney/temp-actuator/internal/config"
	"github.com/sweeney/temp-actuator/internal/gpio"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"interval":     "schedule.interval",
	"max-runs":     "schedule.max_runs",
	"timeout":      "choreo.timeout",
	"transport":    "choreo.transport",
	"ca-file":      "choreo.ca_file",
	"pin":          "actuator.pin",
	"threshold":    "actuator.threshold",
	"gpio-backend": "gpio.backend",
	"gpio-chip":    "gpio.chip",
	"broker":       "mqtt.broker",
	"http":         "http_addr",
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "temp-actuator",
		Short:         "Drive a GPIO pin from a remote temperature reading",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "TOML config file (default ./temp-actuator.toml or /etc/temp-actuator/temp-actuator.toml)")
	f.Duration("interval", config.DefaultInterval, "Minimum time between invocations")
	f.Int("max-runs", config.DefaultMaxRuns, "Invocations for the process lifetime")
	f.Duration("timeout", config.DefaultTimeout, "Invocation timeout")
	f.String("transport", config.DefaultTransport, `Connection to the remote service ("tls" or "plain")`)
	f.String("ca-file", "", "PEM bundle of trusted CAs for the tls transport")
	f.Int("pin", config.DefaultPin, "Output pin driven by the threshold rule")
	f.Int("threshold", config.DefaultThreshold, "Readings strictly above this drive the pin low")
	f.String("gpio-backend", config.DefaultGPIOBackend, `GPIO backend ("sysfs" or "cdev")`)
	f.String("gpio-chip", config.DefaultGPIOChip, "GPIO character device for the cdev backend")
	f.String("broker", "", "MQTT broker address (empty to disable)")
	f.String("http", config.DefaultHTTPAddr, "HTTP status address (empty to disable)")
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(newPinCmd(v, &cfgFile), newConfigCmd(v, &cfgFile))
	return root
}

func newPinCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pin",
		Short: "Print the output pin level and exit (a sysfs pin is exported only for the read)",
		Long: `Print the current level of the output pin and exit.

With the sysfs backend a pin that is not yet exported is exported for the
read and unexported again afterwards. The pin direction is never changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, *cfgFile)
			if err != nil {
				return err
			}
			chip, err := openChip(cfg.GPIO)
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer chip.Close()

			level, err := readPin(chip, cfg.Actuator.Pin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pin %d: %s\n", cfg.Actuator.Pin, level)
			return nil
		},
	}
}

func newConfigCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, *cfgFile)
			if err != nil {
				return err
			}
			out, err := config.Render(cfg.Redacted())
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func loadConfig(v *viper.Viper, file string) (config.Config, error) {
	cfg, err := config.Load(v, file)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openChip opens the configured GPIO backend.
func openChip(c config.GPIO) (gpio.Chip, error) {
	switch c.Backend {
	case "cdev":
		chip, err := gpio.NewCdev(c.Chip)
		if err != nil {
			return nil, err
		}
		return chip, nil
	case "sysfs", "":
		return gpio.NewSysfs(c.SysfsRoot), nil
	}
	return nil, fmt.Errorf("unknown gpio backend %q", c.Backend)
}

// readPin exports pin without changing its direction and reads it. A sysfs
// pin exported only for the read is released again.
func readPin(chip gpio.Chip, pin int) (gpio.Level, error) {
	if s, ok := chip.(*gpio.Sysfs); ok && !s.IsExported(pin) {
		defer func() {
			if err := s.Unexport(pin); err != nil {
				log.Printf("unexport pin %d: %v", pin, err)
			}
		}()
	}
	if err := chip.Export(pin); err != nil {
		return gpio.Low, fmt.Errorf("export pin %d: %w", pin, err)
	}
	level, err := chip.Read(pin)
	if err != nil {
		return gpio.Low, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return level, nil
}
