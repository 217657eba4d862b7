// Package config holds runtime configuration.
package config

import (
	"context"
	"time"
)

// Config is the service configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, also writes logs to a rotating file.
	LogFile string `koanf:"log_file"`

	// LogJSON switches the log format to JSON.
	LogJSON bool `koanf:"log_json"`

	Addr string `koanf:"addr"`

	// FeedURL is the upstream websocket feed. Empty runs the built-in
	// simulator.
	FeedURL string `koanf:"feed_url"`

	// FocusMatchID selects the match whose telemetry and pressure are shown.
	// Empty follows the first live match.
	FocusMatchID string `koanf:"focus_match_id"`

	// NotificationMode is auto, external, synthetic or hybrid.
	NotificationMode     string             `koanf:"notification_mode"`
	FreshnessThresholdMS int                `koanf:"freshness_threshold_ms"`
	ExternalDismissMS    int                `koanf:"external_dismiss_ms"`
	SyntheticMinDelayMS  int                `koanf:"synthetic_min_delay_ms"`
	SyntheticMaxDelayMS  int                `koanf:"synthetic_max_delay_ms"`
	SyntheticDismissMS   int                `koanf:"synthetic_dismiss_ms"`
	TickerPeriodMS       int                `koanf:"ticker_period_ms"`
	CanvasWidth          int                `koanf:"canvas_width"`
	CanvasHeight         int                `koanf:"canvas_height"`
	DedupeSize           int                `koanf:"dedupe_size"`
	DispatchQueueSize    int                `koanf:"dispatch_queue_size"`
	ReconnectDelayMS     int                `koanf:"reconnect_delay_ms"`
	KeepAliveMS          int                `koanf:"keep_alive_ms"`
	PressureSmoothing    float64            `koanf:"pressure_smoothing"`
	PressureWeights      map[string]float64 `koanf:"pressure_weights"`
	SimIntervalMS        int                `koanf:"sim_interval_ms"`
	SimMatches           int                `koanf:"sim_matches"`
	ShutdownTimeoutMS    int                `koanf:"shutdown_timeout_ms"`
}

// New returns a Config with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		NotificationMode:     "auto",
		FreshnessThresholdMS: 10_000,
		ExternalDismissMS:    5_000,
		SyntheticMinDelayMS:  15_000,
		SyntheticMaxDelayMS:  45_000,
		SyntheticDismissMS:   4_000,
		TickerPeriodMS:       5_000,
		CanvasWidth:          600,
		CanvasHeight:         400,
		DedupeSize:           256,
		DispatchQueueSize:    256,
		ReconnectDelayMS:     2_000,
		KeepAliveMS:          20_000,
		PressureSmoothing:    0.3,
		PressureWeights: map[string]float64{
			"possession":    1.0,
			"shots":         2.0,
			"attacks":       1.5,
			"pass_accuracy": 0.5,
		},
		SimIntervalMS:     1_000,
		SimMatches:        4,
		ShutdownTimeoutMS: 10_000,
	}
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
