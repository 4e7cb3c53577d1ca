// Package config loads the station configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/pkg/hardware"
	"github.com/aretw0/cadence/pkg/telemetry"
)

var (
	ErrNoInstruments     = errors.New("station has no instruments and simulation is off")
	ErrInvalidInstrument = errors.New("invalid instrument")
	ErrInvalidTelemetry  = errors.New("invalid telemetry settings")
)

// Config is the station configuration.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
	// ProceduresDir holds YAML and Starlark procedures loaded next to the built-in ones.
	ProceduresDir    string `mapstructure:"procedures_dir"`
	InitialProcedure string `mapstructure:"initial_procedure"`
	// TestMode shortens the built-in cycle for bench runs.
	TestMode bool `mapstructure:"test_mode"`

	HTTP      HTTPConfig      `mapstructure:"http"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Station   StationConfig   `mapstructure:"station"`
}

// HTTPConfig configures the operator API. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// RedisConfig configures the telemetry store. An empty Addr keeps telemetry in memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type TelemetryConfig struct {
	SamplePeriod time.Duration `mapstructure:"sample_period"`
	Retries      int           `mapstructure:"retries"`
	// Buffer is the number of records kept by the in-memory store.
	Buffer   int                 `mapstructure:"buffer"`
	Channels []telemetry.Channel `mapstructure:"channels"`
}

type StationConfig struct {
	// Simulate replaces every instrument with the simulated 2pac station.
	Simulate    bool                  `mapstructure:"simulate"`
	Instruments []hardware.DeviceSpec `mapstructure:"instruments"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel:         "info",
		InitialProcedure: "wait_forever",
		Redis:            RedisConfig{Prefix: "cadence:telemetry:"},
		Telemetry: TelemetryConfig{
			SamplePeriod: 10 * time.Second,
			Retries:      1,
			Buffer:       4096,
		},
		Station: StationConfig{Simulate: true},
	}
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for values the station cannot run with.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Telemetry.SamplePeriod < 0 || c.Telemetry.Retries < 0 || c.Telemetry.Buffer < 0 {
		return fmt.Errorf("%w: negative value", ErrInvalidTelemetry)
	}
	for _, ch := range c.Telemetry.Channels {
		if ch.Addr == "" {
			return fmt.Errorf("%w: channel %q has no addr", ErrInvalidTelemetry, ch.Name)
		}
	}
	if c.Station.Simulate {
		return nil
	}
	if len(c.Station.Instruments) == 0 {
		return ErrNoInstruments
	}
	for i, inst := range c.Station.Instruments {
		if inst.Name == "" || inst.Device == "" {
			return fmt.Errorf("%w: entry %d needs name and device", ErrInvalidInstrument, i)
		}
		if _, ok := hardware.Tables[inst.Driver]; !ok {
			return fmt.Errorf("%w: %s has unknown driver %q", ErrInvalidInstrument, inst.Name, inst.Driver)
		}
	}
	return nil
}

// Channels returns the configured channel table, or the 2pac default.
func (c Config) Channels() []telemetry.Channel {
	if len(c.Telemetry.Channels) > 0 {
		return c.Telemetry.Channels
	}
	return telemetry.DefaultChannels()
}
