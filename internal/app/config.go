package app

import "errors"

// Config holds all the configuration an App instance needs to run.
type Config struct {
	// RequestPath is the HCL request file to load.
	RequestPath string
	// OutputDir receives the pipeline exports and materialized resources.
	OutputDir string

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.RequestPath == "" {
		return nil, errors.New("RequestPath is a required configuration field and cannot be empty")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "anatref-out"
	}
	return &cfg, nil
}
