// Command feed-sim serves a simulated live-match feed over the websocket
// feed protocol so the presentation service can run against a real
// upstream connection.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/okian/livepitch/internal/adapters/source/memory"
	"github.com/okian/livepitch/internal/adapters/source/wsfeed"
	"github.com/okian/livepitch/internal/feedsim"
	"github.com/okian/livepitch/pkg/logger"
)

const (
	defaultAddr         = ":9081"
	defaultMatches      = feedsim.DefaultMatches
	defaultInterval     = feedsim.DefaultInterval
	readHeaderTimeout   = 5 * time.Second
	shutdownGracePeriod = 5 * time.Second
)

func main() {
	_ = godotenv.Load()

	var (
		addr     = flag.String("addr", defaultAddr, "Listen address of the websocket feed")
		matches  = flag.Int("matches", defaultMatches, "Number of concurrent simulated matches")
		interval = flag.Duration("interval", defaultInterval, "Wall time per simulated minute")
		seed     = flag.Uint64("seed", 0, "Random seed (0 picks one from the clock)")
		width    = flag.Int("width", feedsim.DefaultWidth, "Telemetry pitch width")
		height   = flag.Int("height", feedsim.DefaultHeight, "Telemetry pitch height")
		level    = flag.String("log-level", "info", "Log level")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	if err := logger.SetLevelString(*level); err != nil {
		os.Stderr.WriteString("invalid log level: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Named("feed-sim")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := memory.New()
	opts := []feedsim.Option{
		feedsim.WithMatches(*matches),
		feedsim.WithInterval(*interval),
		feedsim.WithPitch(*width, *height),
		feedsim.WithLogger(log),
	}
	if *seed != 0 {
		opts = append(opts, feedsim.WithSeed(*seed))
	}
	sim := feedsim.New(src, opts...)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsfeed.NewServer(src, wsfeed.WithServerLogger(log)))
	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		log.Info(ctx, "feed simulator listening", logger.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "listen failed", logger.Error(err))
			stop()
		}
	}()

	if err := sim.Run(ctx); err != nil {
		log.Error(ctx, "simulator failed", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "shutdown failed", logger.Error(err))
	}
}
