package cli

import (
	"github.com/aretw0/cadence/internal/config"
)

// RunOptions contains all the configuration for the Run command.
// Non-zero fields override the configuration file.
type RunOptions struct {
	ConfigPath    string
	Procedure     string
	ProceduresDir string
	HTTPAddr      string
	RedisAddr     string
	Simulate      bool
	TestMode      bool
	Debug         bool
	Headless      bool
}

// LoadConfig reads the configuration file (or the defaults) and applies the overrides of opts.
func LoadConfig(opts RunOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return config.Config{}, err
		}
	}

	if opts.Procedure != "" {
		cfg.InitialProcedure = opts.Procedure
	}
	if opts.ProceduresDir != "" {
		cfg.ProceduresDir = opts.ProceduresDir
	}
	if opts.HTTPAddr != "" {
		cfg.HTTP.Addr = opts.HTTPAddr
	}
	if opts.RedisAddr != "" {
		cfg.Redis.Addr = opts.RedisAddr
	}
	if opts.Simulate {
		cfg.Station.Simulate = true
	}
	if opts.TestMode {
		cfg.TestMode = true
	}
	return cfg, cfg.Validate()
}

// Execute handles the 'run' command logic.
func Execute(opts RunOptions) error {
	return RunSession(opts)
}
