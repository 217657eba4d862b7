package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/okian/livepitch/internal/adapters/http/api"
	"github.com/okian/livepitch/internal/adapters/http/site"
	"github.com/okian/livepitch/internal/adapters/http/swagger"
	"github.com/okian/livepitch/internal/adapters/source/wsfeed"
	app "github.com/okian/livepitch/internal/app"
	"github.com/okian/livepitch/internal/config"
	"github.com/okian/livepitch/internal/domain/notify"
	"github.com/okian/livepitch/internal/domain/ticker"
	"github.com/okian/livepitch/internal/feedsim"
	"github.com/okian/livepitch/pkg/logger"
	"github.com/okian/livepitch/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	_ = godotenv.Load()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFile(cfg.LogFile), logger.WithJSON(cfg.LogJSON)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, loggerInstance); err != nil {
		loggerInstance.Error(ctx, "server failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	opts, err := serviceOptions(cfg, log)
	if err != nil {
		return err
	}

	if cfg.FeedURL != "" {
		client := wsfeed.New(cfg.FeedURL,
			wsfeed.WithReconnectDelay(config.Millis(cfg.ReconnectDelayMS)),
			wsfeed.WithKeepAlive(config.Millis(cfg.KeepAliveMS)),
			wsfeed.WithLogger(log.Named("wsfeed")),
		)
		if err := client.Start(ctx); err != nil {
			return fmt.Errorf("start feed client: %w", err)
		}
		defer func() { _ = client.Close() }()
		opts = append(opts, app.WithSource(client))
	}

	svc := app.New(opts...)
	mux, apiServer := newMux(ctx, svc, log)
	defer apiServer.Close()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     mux,
		ReadTimeout: readTimeout,
		// Stream responses stay open, so writes are not bounded.
		WriteTimeout:      0,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Streams hold their connections open until the hub lets go.
	apiServer.Close()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.Millis(cfg.ShutdownTimeoutMS))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// serviceOptions maps the configuration onto service options.
func serviceOptions(cfg *config.Config, log logger.Logger) ([]app.Option, error) {
	mode, err := notify.ParseMode(cfg.NotificationMode)
	if err != nil {
		return nil, fmt.Errorf("notification mode: %w", err)
	}
	return []app.Option{
		app.WithLogger(log),
		app.WithMode(mode),
		app.WithNotifyOptions(
			notify.WithFreshness(config.Millis(cfg.FreshnessThresholdMS)),
			notify.WithExternalDismiss(config.Millis(cfg.ExternalDismissMS)),
			notify.WithSyntheticDelay(config.Millis(cfg.SyntheticMinDelayMS), config.Millis(cfg.SyntheticMaxDelayMS)),
			notify.WithSyntheticDismiss(config.Millis(cfg.SyntheticDismissMS)),
		),
		app.WithTickerOptions(ticker.WithPeriod(config.Millis(cfg.TickerPeriodMS))),
		app.WithSimulatorOptions(
			feedsim.WithMatches(cfg.SimMatches),
			feedsim.WithInterval(config.Millis(cfg.SimIntervalMS)),
		),
		app.WithCanvas(cfg.CanvasWidth, cfg.CanvasHeight),
		app.WithFocusMatch(cfg.FocusMatchID),
		app.WithPressure(cfg.PressureSmoothing, cfg.PressureWeights),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithDispatchQueueSize(cfg.DispatchQueueSize),
	}, nil
}

// newMux registers the API, its reference docs and the overlay on a new mux.
func newMux(ctx context.Context, svc *app.Service, log logger.Logger) (*http.ServeMux, *api.Server) {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)

	apiServer := api.NewServer(svc, api.WithLogger(log.Named("api")))
	apiServer.Register(ctx, mux)
	return mux, apiServer
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	t := time.NewTicker(systemMetricsInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
