// Package scheduler drives the refresh-wait-record loop: it rebuilds the
// pass queue from fresh orbital elements, watches the queue on a
// minute-granularity tick, and hands due passes to the recording engine
// with single-flight protection and duration correction for late starts.
//
// Dispatch is deliberately poll-only. The best upcoming pass is still
// "armed" and published for status purposes, but no one-shot timer ever
// starts a capture; the per-minute scan is the single authoritative
// dispatch path, so a missed timer can never lose a pass and the
// timer-versus-poll double-start race cannot exist.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kf7zyx/skywatch/internal/capture"
	"github.com/kf7zyx/skywatch/internal/config"
	"github.com/kf7zyx/skywatch/internal/metrics"
	"github.com/kf7zyx/skywatch/internal/pass"
	"github.com/kf7zyx/skywatch/internal/status"
	"github.com/kf7zyx/skywatch/internal/tle"
	"github.com/kf7zyx/skywatch/internal/upload"
)

// Recorder is the slice of the capture engine the scheduler needs.
type Recorder interface {
	Capture(ctx context.Context, req capture.Request) (capture.Result, error)
	Busy() bool
}

// Uploader receives finished artifacts. The scheduler calls it once per
// artifact and never retries; bounded retry lives inside the client.
type Uploader interface {
	Upload(ctx context.Context, artifactPath string, meta upload.Metadata) error
}

// ElementSource supplies refreshed orbital elements, typically the TLE
// cache with its network-plus-disk fallback.
type ElementSource interface {
	FetchElements(ctx context.Context) (tle.ElementSet, error)
}

// Connectivity reports whether the network is reachable. Supplied by the
// network-management collaborator; the scheduler only uses it for logging
// since the element source already degrades to its cache.
type Connectivity interface {
	Online() bool
}

// Command is an external request sent to the scheduler. The Reply channel
// receives exactly one result.
type Command struct {
	Type    string
	Payload json.RawMessage
	Reply   chan<- CommandResult
}

// CommandResult is the response sent back through a Command's Reply channel.
type CommandResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Passes  int    `json:"passes,omitempty"`
}

// Options carries the scheduler's collaborators. Everything is injected so
// tests can substitute fakes without process-wide side effects.
type Options struct {
	Cfg       config.Config
	Log       *log.Logger
	Sink      status.Sink
	Met       *metrics.Metrics
	Store     *pass.Store
	Elements  ElementSource
	Segmenter *pass.Segmenter
	Recorder  Recorder
	Uploader  Uploader // nil when uploads are disabled
	Net       Connectivity
}

// Runner owns the scheduling loop.
type Runner struct {
	cfg  config.Config
	log  *log.Logger
	sink status.Sink
	met  *metrics.Metrics

	// Commands receives external commands from the HTTP layer. They are
	// handled between ticks.
	Commands chan Command

	store     *pass.Store
	elements  ElementSource
	segmenter *pass.Segmenter
	recorder  Recorder
	uploader  Uploader
	net       Connectivity

	paused atomic.Bool

	mu       sync.Mutex
	inFlight string     // key of the pass currently being captured
	armed    *pass.Pass // best upcoming pass, for status only

	now  func() time.Time // test hook
	tick time.Duration
}

// New creates a scheduler runner from its collaborators.
func New(opts Options) *Runner {
	return &Runner{
		cfg:       opts.Cfg,
		log:       opts.Log,
		sink:      opts.Sink,
		met:       opts.Met,
		Commands:  make(chan Command, 4),
		store:     opts.Store,
		elements:  opts.Elements,
		segmenter: opts.Segmenter,
		recorder:  opts.Recorder,
		uploader:  opts.Uploader,
		net:       opts.Net,
		now:       time.Now,
		tick:      time.Minute,
	}
}

// IsPaused reports whether the scheduler is paused.
func (r *Runner) IsPaused() bool { return r.paused.Load() }

// Armed returns the currently armed pass, or nil.
func (r *Runner) Armed() *pass.Pass {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.armed == nil {
		return nil
	}
	p := *r.armed
	return &p
}

// Run is the main loop: an immediate refresh, then a minute tick that
// refreshes on schedule and dispatches due passes. Blocks until ctx is
// cancelled.
func (r *Runner) Run(ctx context.Context, setState func(string)) {
	r.sink.Publish(status.NewLog("scheduler", "info", "scheduler started"))

	r.refresh(ctx, setState)
	lastRefresh := r.now()

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case cmd := <-r.Commands:
			r.handleCommand(ctx, cmd, setState)

		case <-ticker.C:
			if r.paused.Load() {
				continue
			}
			if r.now().Sub(lastRefresh) >= time.Duration(r.cfg.Predict.RefreshHours)*time.Hour {
				r.refresh(ctx, setState)
				lastRefresh = r.now()
			}
			r.Dispatch(ctx, setState)
		}
	}
}

// refresh rebuilds the pass queue: fetch elements (cache-backed), segment
// the horizon, clear the store, and merge the fresh passes in. On fetch
// failure the queue is left untouched and the scheduler stays idle until
// the next cycle.
func (r *Runner) refresh(ctx context.Context, setState func(string)) {
	r.sink.Publish(status.NewLog("scheduler", "info", "updating passes"))

	if r.net != nil && !r.net.Online() {
		r.log.Printf("scheduler: offline, element refresh will rely on cached data")
	}

	r.met.IncTLEFetches()
	set, err := r.elements.FetchElements(ctx)
	if err != nil {
		r.log.Printf("scheduler: element refresh failed: %v", err)
		r.sink.Publish(status.NewLog("scheduler", "error", "element refresh failed: "+err.Error()))
		setState("IDLE")
		return
	}

	now := r.now()
	passes := r.segmenter.Segment(set, now)
	r.met.AddPassesDetected(len(passes))

	if err := r.store.Clear(); err != nil {
		r.log.Printf("scheduler: clearing pass queue: %v", err)
	}
	if err := r.store.Merge(passes); err != nil {
		r.log.Printf("scheduler: persisting pass queue: %v", err)
		setState("IDLE")
		return
	}

	r.sink.Publish(status.NewLog("scheduler", "info",
		fmt.Sprintf("found %d passes in next %dd", len(passes), r.cfg.Predict.HorizonDays)))

	r.armBest(passes, now, setState)
}

// armBest records the highest-elevation future unrecorded pass of the
// current day for status and telemetry. It never dispatches.
func (r *Runner) armBest(passes []pass.Pass, now time.Time, setState func(string)) {
	var best *pass.Pass
	today := now.UTC().Truncate(24 * time.Hour)
	for i := range passes {
		p := passes[i]
		if p.Recorded || !p.Start.After(now) {
			continue
		}
		if !p.Start.UTC().Truncate(24 * time.Hour).Equal(today) {
			continue
		}
		if best == nil || p.MaxElevation > best.MaxElevation {
			best = &passes[i]
		}
	}

	r.mu.Lock()
	r.armed = best
	r.mu.Unlock()

	if best == nil {
		setState("IDLE")
		r.sink.Publish(status.NewLog("scheduler", "info", "idle"))
		return
	}

	setState("ARMED")
	r.sink.Publish(status.NewPassScheduled(
		best.Satellite, best.FreqHz,
		best.Start.UTC().Format(time.RFC3339),
		best.DurationMinutes, best.MaxElevation,
	))
	r.log.Printf("scheduler: armed %s at %s (max elev %.1f°)",
		best.Satellite, best.Start.UTC().Format(time.RFC3339), best.MaxElevation)
}

// Dispatch scans the queue for a due, unrecorded pass and starts a capture
// for it. A pass dispatched more than a minute after its start gets a
// corrected duration covering only the remaining window, so a late capture
// cannot overrun. Exported for the tick loop and for tests; real traffic
// arrives via Run.
func (r *Runner) Dispatch(ctx context.Context, setState func(string)) {
	passes, err := r.store.Load()
	if err != nil {
		// Corrupt queue: rebuild instead of trusting it.
		r.log.Printf("scheduler: pass queue unreadable: %v", err)
		r.refresh(ctx, setState)
		return
	}

	now := r.now()
	due := r.duePass(passes, now)
	if due == nil {
		return
	}

	if r.recorder.Busy() {
		// A pass is lost rather than corrupting the in-flight capture.
		r.met.IncPassesSkipped()
		r.log.Printf("scheduler: %s due but a recording is active, pass lost", due.Satellite)
		r.sink.Publish(status.NewLog("scheduler", "warn", "pass skipped: recording in progress"))
		return
	}

	duration := time.Duration(due.DurationMinutes) * time.Minute
	if now.Sub(due.Start) > time.Minute {
		duration = time.Duration(CorrectedDurationMinutes(*due, now)) * time.Minute
	}
	if duration <= 0 {
		return
	}

	// Marking recorded at dispatch time is what makes the flag a
	// double-start guard alongside the engine mutex; a failed capture is
	// not retried within its window.
	if err := r.store.MarkRecorded(due.Key()); err != nil {
		r.log.Printf("scheduler: marking %s recorded: %v", due.Satellite, err)
	}

	r.mu.Lock()
	r.inFlight = due.Key()
	r.mu.Unlock()

	setState("RECORDING")
	r.sink.Publish(status.NewLog("scheduler", "info", "pass found, recording "+due.Satellite))

	p := *due
	go r.capturePass(ctx, p, duration, setState)
}

// duePass returns the first unrecorded pass whose window contains now and
// which is not already being captured.
func (r *Runner) duePass(passes []pass.Pass, now time.Time) *pass.Pass {
	r.mu.Lock()
	inFlight := r.inFlight
	r.mu.Unlock()

	for i := range passes {
		p := passes[i]
		if p.Recorded || !p.Contains(now) || p.Key() == inFlight {
			continue
		}
		return &passes[i]
	}
	return nil
}

// CorrectedDurationMinutes returns the whole minutes remaining in the
// pass's window at now. A capture starting late records only what is left.
func CorrectedDurationMinutes(p pass.Pass, now time.Time) int {
	return int(p.End().Sub(now).Minutes())
}

// capturePass runs one capture to completion and hands the artifact to the
// uploader. Runs in its own goroutine so the tick loop keeps observing
// (and refusing) other due passes.
func (r *Runner) capturePass(ctx context.Context, p pass.Pass, duration time.Duration, setState func(string)) {
	refused := false
	defer func() {
		r.mu.Lock()
		r.inFlight = ""
		r.mu.Unlock()
		if refused {
			// The sibling capture still owns the RECORDING state; leave it
			// for that capture's own teardown to clear.
			return
		}
		setState("IDLE")
		r.sink.Publish(status.NewLog("scheduler", "info", "idle"))
	}()

	res, err := r.recorder.Capture(ctx, capture.Request{
		Satellite: p.Satellite,
		FreqHz:    p.FreqHz,
		Duration:  duration,
	})
	if errors.Is(err, capture.ErrBusy) {
		refused = true
		r.met.IncPassesSkipped()
		r.log.Printf("scheduler: capture refused for %s: already recording", p.Satellite)
		return
	}
	if err != nil {
		r.log.Printf("scheduler: capture failed for %s: %v", p.Satellite, err)
		return
	}

	if r.uploader == nil {
		return
	}
	meta := upload.Metadata{
		StationID:    r.cfg.Station.ID,
		Satellite:    p.Satellite,
		SessionID:    res.SessionID,
		Start:        p.Start,
		MaxElevation: p.MaxElevation,
	}
	if err := r.uploader.Upload(ctx, res.Path, meta); err != nil {
		r.met.IncUploadsFailed()
		r.log.Printf("scheduler: upload failed for %s: %v", p.Satellite, err)
	}
}

// handleCommand dispatches an incoming command between ticks.
func (r *Runner) handleCommand(ctx context.Context, cmd Command, setState func(string)) {
	switch cmd.Type {
	case "trigger":
		r.handleTrigger(ctx, cmd, setState)
	case "refresh":
		r.refresh(ctx, setState)
		cmd.Reply <- CommandResult{OK: true, Message: "pass queue refreshed"}
	case "pause":
		r.paused.Store(true)
		r.sink.Publish(status.NewLog("scheduler", "info", "scheduler paused by user"))
		cmd.Reply <- CommandResult{OK: true, Message: "scheduler paused"}
	case "resume":
		r.paused.Store(false)
		r.sink.Publish(status.NewLog("scheduler", "info", "scheduler resumed by user"))
		cmd.Reply <- CommandResult{OK: true, Message: "scheduler resumed"}
	default:
		cmd.Reply <- CommandResult{OK: false, Error: "unknown command: " + cmd.Type}
	}
}

// handleTrigger starts an immediate manual capture. The engine's
// single-flight flag still applies.
func (r *Runner) handleTrigger(ctx context.Context, cmd Command, setState func(string)) {
	var payload struct {
		Satellite       string `json:"satellite"`
		DurationSeconds int    `json:"duration_seconds"`
	}
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		cmd.Reply <- CommandResult{OK: false, Error: "invalid payload: " + err.Error()}
		return
	}

	freq := r.cfg.FrequencyFor(payload.Satellite)
	if freq == 0 {
		cmd.Reply <- CommandResult{OK: false, Error: "unknown satellite: " + payload.Satellite}
		return
	}
	if payload.DurationSeconds <= 0 {
		cmd.Reply <- CommandResult{OK: false, Error: "duration_seconds must be > 0"}
		return
	}
	if r.recorder.Busy() {
		cmd.Reply <- CommandResult{OK: false, Error: "a recording is already in progress"}
		return
	}

	dur := time.Duration(payload.DurationSeconds) * time.Second
	cmd.Reply <- CommandResult{OK: true, Message: fmt.Sprintf("capture triggered for %s (%s)", payload.Satellite, dur)}

	setState("RECORDING")
	go r.capturePass(ctx, pass.Pass{
		Satellite: payload.Satellite,
		FreqHz:    freq,
		Start:     r.now(),
	}, dur, setState)
}
