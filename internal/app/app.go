// Package app wires the components together: config in, scheduler plus
// capture engine plus status hub plus HTTP surface out. It owns the
// daemon's lifecycle and is the single source of truth for the current
// operating state.
package app

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/kf7zyx/skywatch/internal/capture"
	"github.com/kf7zyx/skywatch/internal/config"
	"github.com/kf7zyx/skywatch/internal/metrics"
	"github.com/kf7zyx/skywatch/internal/orbit"
	"github.com/kf7zyx/skywatch/internal/pass"
	"github.com/kf7zyx/skywatch/internal/scheduler"
	"github.com/kf7zyx/skywatch/internal/status"
	"github.com/kf7zyx/skywatch/internal/tle"
	"github.com/kf7zyx/skywatch/internal/upload"
)

// Options holds everything the App needs from the caller.
type Options struct {
	Logger *log.Logger
	Cfg    config.Config
	Bind   string
}

// App is the top-level daemon process.
type App struct {
	log    *log.Logger
	cfg    config.Config
	bind   string
	server *http.Server

	startedAt time.Time
	state     atomic.Value // current state string (BOOTING, IDLE, ...)

	hub   *status.Hub
	met   *metrics.Metrics
	store *pass.Store
	sched *scheduler.Runner
}

// New creates an App in the BOOTING state. Call Run to start serving.
func New(opts Options) *App {
	a := &App{
		log:       opts.Logger,
		cfg:       opts.Cfg,
		bind:      opts.Bind,
		startedAt: time.Now(),
		hub:       status.NewHub(),
		met:       metrics.New(),
	}
	a.state.Store("BOOTING")
	return a
}

// Run resolves the station location, builds the scheduler stack, and serves
// HTTP until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	obs := a.resolveObserver()

	a.store = pass.NewStore(a.cfg.Data.PassesFile, a.log)
	cache := tle.NewCache(a.cfg.Predict.TLEURL, a.cfg.Data.TLECacheFile, a.cfg.Predict.CacheMaxAgeDays, a.log)
	cache.OnFallback = a.met.IncTLECacheFallback
	engine := capture.New(a.cfg, a.hub, a.met, a.log)

	segmenter := &pass.Segmenter{
		Observer:      obs,
		HorizonDays:   a.cfg.Predict.HorizonDays,
		MinElevation:  a.cfg.Predict.MinElevation,
		MaxDistanceKm: a.cfg.Predict.MaxDistanceM / 1000.0,
		BufferMinutes: a.cfg.Predict.BufferMinutes,
		FreqFor:       a.cfg.FrequencyFor,
		Log:           a.log,
		NewSampler:    pass.OrbitSampler,
	}

	var uploader scheduler.Uploader
	if a.cfg.Upload.Enabled {
		uploader = upload.NewClient(a.cfg.Upload.URL, a.log)
	}

	a.sched = scheduler.New(scheduler.Options{
		Cfg:       a.cfg,
		Log:       a.log,
		Sink:      a.hub,
		Met:       a.met,
		Store:     a.store,
		Elements:  cache,
		Segmenter: segmenter,
		Recorder:  engine,
		Uploader:  uploader,
		Net:       dialProbe{},
	})

	bind := a.bind
	if bind == "" && a.cfg.Server.Bind != "" {
		bind = a.cfg.Server.Bind
	}
	if bind == "" {
		bind = "0.0.0.0:8080"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/passes", a.handlePasses)
	mux.HandleFunc("/api/next-pass", a.handleNextPass)
	mux.HandleFunc("/api/trigger", a.handleTrigger)
	mux.HandleFunc("/api/refresh", a.handleRefresh)
	mux.Handle("/metrics", a.met.Handler())
	mux.Handle("/ws", a.hub.Handler())

	a.server = &http.Server{
		Addr:              bind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}

	a.log.Printf("listening on http://%s", bind)

	go a.hub.Run(ctx)
	a.transition("IDLE")
	go a.heartbeatLoop(ctx)
	go a.sched.Run(ctx, a.transition)

	go func() {
		<-ctx.Done()
		a.log.Printf("shutdown requested")
		_ = a.server.Shutdown(context.Background())
	}()

	return a.server.Serve(ln)
}

// resolveObserver prefers a live gpsd fix when configured, falling back to
// the static station coordinates.
func (a *App) resolveObserver() orbit.Observer {
	st := a.cfg.Station
	if st.UseGPSD {
		obs, err := orbit.ObserverFromGPSD(st.GPSDHost, 10*time.Second)
		if err != nil {
			a.log.Printf("app: gpsd failed (%v), using configured coordinates", err)
		} else {
			a.log.Printf("app: station location from gpsd: %.4f, %.4f", obs.LatDeg, obs.LonDeg)
			return obs
		}
	}
	return orbit.NewObserver(st.Latitude, st.Longitude, st.Altitude)
}

// transition atomically updates the daemon state and broadcasts the change.
func (a *App) transition(newState string) {
	old := a.state.Load().(string)
	if old == newState {
		return
	}
	a.state.Store(newState)
	a.hub.Publish(status.NewState(old, newState))
}

// heartbeatLoop emits a periodic heartbeat so clients can track uptime
// without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.hub.Publish(status.NewHeartbeat(a.state.Load().(string), time.Since(a.startedAt)))
		}
	}
}
