package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tailored-agentic-units/blobstore/server"
)

func main() {
	var (
		configFile    = flag.String("config", "", "Path to server config JSON file")
		addr          = flag.String("addr", "", "Listen address (overrides config and PORT)")
		dataDir       = flag.String("data", "", "Record directory (overrides config and CACHE_DIR)")
		statsInterval = flag.Duration("stats-interval", 0, "Log engine counters at this interval; 0 disables")
		verbose       = flag.Bool("verbose", false, "Enable debug logging")
		anonWrites    = flag.Bool("allow-anonymous-writes", false, "Accept writes without a token when no write token is set")
	)
	flag.Parse()

	cfg := server.DefaultConfig()
	if *configFile != "" {
		loaded, err := server.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}

	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dataDir != "" {
		cfg.Engine.Store.Path = *dataDir
	}
	if *anonWrites {
		cfg.Auth.AllowAnonymousWrites = true
	}

	level, err := server.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if *verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	srv, err := server.New(&cfg, server.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx)
	})
	if *statsInterval > 0 {
		g.Go(func() error {
			reportStats(ctx, srv, logger, *statsInterval)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "blobstore: %v\n", err)
		os.Exit(1)
	}
}

func reportStats(ctx context.Context, srv *server.Server, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := srv.Stats()
			attrs := []any{"uptime_seconds", int64(snap.UptimeSeconds)}
			for event, n := range snap.Events {
				attrs = append(attrs, string(event), n)
			}
			logger.Info("stats", attrs...)
		}
	}
}
