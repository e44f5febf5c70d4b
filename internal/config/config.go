// Package config loads service settings with viper: configs/config.yml,
// then REFLOW_* environment variables, over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"reflow_oven/internal/hardware/mcu"
	"reflow_oven/internal/hardware/sim"
	"reflow_oven/internal/logger"
	"reflow_oven/internal/reflow"
)

const envPrefix = "REFLOW"

// Hardware drivers.
const (
	DriverSim = "sim"
	DriverMCU = "mcu"
)

type Config struct {
	Port         string             `mapstructure:"port"`
	DB           DBConfig           `mapstructure:"db"`
	Log          LogConfig          `mapstructure:"log"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Hardware     HardwareConfig     `mapstructure:"hardware"`
	Loop         LoopConfig         `mapstructure:"loop"`
	Guard        reflow.GuardConfig `mapstructure:"guard"`
	Sequencer    reflow.Config      `mapstructure:"sequencer"`
	Tunings      reflow.Tunings     `mapstructure:"tunings"`
	ProfilesFile string             `mapstructure:"profiles_file"`
	Sim          sim.Config         `mapstructure:"sim"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
	// EventRetention drops older oven events at startup; zero keeps them all.
	EventRetention time.Duration `mapstructure:"event_retention"`
}

type LogConfig = logger.Config

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type HardwareConfig struct {
	// Driver is "sim" or "mcu".
	Driver     string        `mapstructure:"driver"`
	SerialPort string        `mapstructure:"serial_port"`
	BaudRate   int           `mapstructure:"baud_rate"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

type LoopConfig struct {
	Tick         time.Duration `mapstructure:"tick"`
	RenderPeriod time.Duration `mapstructure:"render_period"`
}

// SequencerConfig returns the sequencer settings with guard and tunings
// folded in.
func (c *Config) SequencerConfig() reflow.Config {
	sc := c.Sequencer
	sc.Guard = c.Guard
	sc.Tunings = c.Tunings
	return sc
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	switch c.Hardware.Driver {
	case DriverSim:
	case DriverMCU:
		if c.Hardware.SerialPort == "" {
			return errors.New("hardware.serial_port is required for the mcu driver")
		}
	default:
		return fmt.Errorf("unknown hardware.driver %q", c.Hardware.Driver)
	}
	if c.Guard.High <= c.Guard.Low {
		return fmt.Errorf("guard.high %.1f must exceed guard.low %.1f", c.Guard.High, c.Guard.Low)
	}
	if c.Sequencer.Ceiling > c.Guard.High {
		return fmt.Errorf("sequencer.ceiling %.1f is above guard.high %.1f", c.Sequencer.Ceiling, c.Guard.High)
	}
	if c.DB.EventRetention < 0 {
		return errors.New("db.event_retention must not be negative")
	}
	if c.Loop.Tick <= 0 {
		return errors.New("loop.tick must be positive")
	}
	switch c.Log.Format {
	case logger.FormatConsole, logger.FormatJSON:
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	if strings.TrimSpace(c.Auth.SigningKey) == "" {
		return errors.New("auth.signing_key must be set")
	}
	return nil
}

// SetDefaults registers every key so that env overrides also apply to keys
// absent from the file.
func SetDefaults(v *viper.Viper) {
	seq := reflow.DefaultConfig()
	guard := reflow.DefaultGuardConfig()
	tun := reflow.DefaultTunings()
	simCfg := sim.DefaultConfig()

	v.SetDefault("port", "8080")
	v.SetDefault("db.path", "app.db")
	v.SetDefault("db.event_retention", time.Duration(0))
	v.SetDefault("log.level", logger.InfoLevel)
	v.SetDefault("log.format", logger.FormatConsole)
	v.SetDefault("auth.signing_key", "change-me")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("hardware.driver", DriverSim)
	v.SetDefault("hardware.serial_port", "")
	v.SetDefault("hardware.baud_rate", mcu.DefaultBaudRate)
	v.SetDefault("hardware.stale_after", mcu.DefaultStaleAfter)

	v.SetDefault("loop.tick", reflow.DefaultTick)
	v.SetDefault("loop.render_period", reflow.DefaultRenderPeriod)

	v.SetDefault("guard.low", guard.Low)
	v.SetDefault("guard.high", guard.High)
	v.SetDefault("guard.bad_threshold", guard.BadThreshold)
	v.SetDefault("guard.window_samples", guard.WindowSamples)
	v.SetDefault("guard.recovery_samples", guard.RecoverySamples)

	v.SetDefault("sequencer.ceiling", seq.Ceiling)
	v.SetDefault("sequencer.band", seq.Band)
	v.SetDefault("sequencer.safe_low", seq.SafeLow)
	v.SetDefault("sequencer.safe_high", seq.SafeHigh)
	v.SetDefault("sequencer.probe_countdown", seq.ProbeCountdown)
	v.SetDefault("sequencer.complete_dwell", seq.CompleteDwell)
	v.SetDefault("sequencer.relay_window", seq.RelayWindow)
	v.SetDefault("sequencer.skip_probe_check", false)

	for name, t := range map[string]reflow.Tuning{"preheat": tun.Preheat, "soak": tun.Soak, "reflow": tun.Reflow} {
		v.SetDefault("tunings."+name+".kp", t.Kp)
		v.SetDefault("tunings."+name+".ki", t.Ki)
		v.SetDefault("tunings."+name+".kd", t.Kd)
	}

	v.SetDefault("profiles_file", "")

	v.SetDefault("sim.ambient", simCfg.Ambient)
	v.SetDefault("sim.heat_rate", simCfg.HeatRate)
	v.SetDefault("sim.loss_coeff", simCfg.LossCoeff)
	v.SetDefault("sim.lag", simCfg.Lag)
	v.SetDefault("sim.noise", simCfg.Noise)
}

// Load reads path, or configs/config.yml when path is empty. A missing
// default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
