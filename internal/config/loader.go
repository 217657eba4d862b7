package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable names.
const (
	EnvPrefix     = "LIVEPITCH_"
	EnvConfigFile = "LIVEPITCH_CONFIG"
)

// Load builds the configuration from defaults, then the YAML file named by
// LIVEPITCH_CONFIG, then LIVEPITCH_* environment variables.
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.FreshnessThresholdMS <= 0:
		return fmt.Errorf("%w: freshness_threshold_ms must be positive", ErrInvalidConfig)
	case c.ExternalDismissMS <= 0 || c.SyntheticDismissMS <= 0:
		return fmt.Errorf("%w: dismiss windows must be positive", ErrInvalidConfig)
	case c.SyntheticMinDelayMS <= 0 || c.SyntheticMaxDelayMS <= c.SyntheticMinDelayMS:
		return fmt.Errorf("%w: synthetic delay range must satisfy 0 < min < max", ErrInvalidConfig)
	case c.TickerPeriodMS <= 0:
		return fmt.Errorf("%w: ticker_period_ms must be positive", ErrInvalidConfig)
	case c.CanvasWidth <= 0 || c.CanvasHeight <= 0:
		return fmt.Errorf("%w: canvas size must be positive", ErrInvalidConfig)
	case c.PressureSmoothing <= 0 || c.PressureSmoothing > 1:
		return fmt.Errorf("%w: pressure_smoothing must be in (0, 1]", ErrInvalidConfig)
	}
	switch strings.ToLower(c.NotificationMode) {
	case "", "auto", "external", "synthetic", "hybrid":
	default:
		return fmt.Errorf("%w: unknown notification_mode %q", ErrInvalidConfig, c.NotificationMode)
	}
	return nil
}
