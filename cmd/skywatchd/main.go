// Skywatchd is the autonomous satellite recording daemon.
//
// It loads and validates configuration, takes the single-instance lock,
// starts the HTTP/WebSocket server, and runs the scheduler that turns
// orbital elements into recordings. Shutdown is handled gracefully on
// SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/pflag"

	"github.com/kf7zyx/skywatch/internal/app"
	"github.com/kf7zyx/skywatch/internal/config"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/skywatch/skywatch.toml", "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides config)")
		simulate   = pflag.Bool("simulate", false, "Synthesize captures instead of using SDR hardware")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *simulate {
		cfg.SDR.Simulate = true
	}

	logger := log.New(os.Stdout, "skywatchd ", log.LstdFlags|log.Lmicroseconds)

	if err := os.MkdirAll(cfg.Data.Root, 0o755); err != nil {
		logger.Fatalf("data root: %v", err)
	}

	// One daemon per station: a second instance would race the pass queue
	// and the SDR device.
	lock := flock.New(cfg.LockFile())
	locked, err := lock.TryLock()
	if err != nil {
		logger.Fatalf("acquire lock: %v", err)
	}
	if !locked {
		logger.Fatalf("another skywatchd instance is already running (lock %s)", cfg.LockFile())
	}
	defer func() { _ = lock.Unlock() }()

	a := app.New(app.Options{
		Logger: logger,
		Cfg:    cfg,
		Bind:   *bind,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("skywatchd failed: %v", err)
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}
