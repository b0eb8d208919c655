// Package config loads optional inspector settings from the environment.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Prefix is prepended to every variable name.
const Prefix = "H5INSPECT_"

// Config holds settings that tune diagnostics and the shell. None of them
// change what the inspector prints on stdout.
type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"warn"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"true"`
	LogFile   string `env:"LOG_FILE"`
	Prompt    string `env:"PROMPT" envDefault:"h5> "`
	MaxPrint  int    `env:"MAX_PRINT" envDefault:"1000"`
	HistBins  int    `env:"HIST_BINS" envDefault:"10"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.MaxPrint <= 0 {
		errs = append(errs, fmt.Errorf("%sMAX_PRINT must be positive, got %d", Prefix, c.MaxPrint))
	}
	if c.HistBins <= 0 || c.HistBins > 1000 {
		errs = append(errs, fmt.Errorf("%sHIST_BINS must be in 1..1000, got %d", Prefix, c.HistBins))
	}
	return errors.Join(errs...)
}
