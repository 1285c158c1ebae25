// Package capture executes the two-stage recording pipeline for a bounded
// duration: an external demodulator producing signed 16-bit mono samples at
// the capture rate, streamed straight into an encoder writing the raw-rate
// WAV, followed by a downsampling pass to the policy target rate. At most
// one capture runs system-wide.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kf7zyx/skywatch/internal/config"
	"github.com/kf7zyx/skywatch/internal/metrics"
	"github.com/kf7zyx/skywatch/internal/status"
)

// ErrBusy is returned when a capture is refused because one is already in
// progress. The caller loses the pass rather than corrupting the in-flight
// recording.
var ErrBusy = errors.New("capture: recording already in progress")

// Request holds the parameters for a single recording session.
type Request struct {
	Satellite string
	FreqHz    int
	Duration  time.Duration
}

// Result describes a finished capture.
type Result struct {
	SessionID string
	RawPath   string // capture-rate intermediate, retained for troubleshooting
	Path      string // downsampled artifact
}

// Engine owns the single-flight recording flag and drives the pipeline.
// The flag check-and-set is atomic with respect to every dispatch path.
type Engine struct {
	cfg  config.Config
	sink status.Sink
	met  *metrics.Metrics
	log  *log.Logger

	mu        sync.Mutex
	recording bool
}

// New creates an engine. Set cfg.SDR.Simulate to run without SDR hardware;
// the engine then synthesizes an APT subcarrier tone instead of spawning
// the demodulator.
func New(cfg config.Config, sink status.Sink, met *metrics.Metrics, logger *log.Logger) *Engine {
	return &Engine{cfg: cfg, sink: sink, met: met, log: logger}
}

// Busy reports whether a recording is in progress.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recording
}

// tryBegin atomically checks and sets the in-progress flag.
func (e *Engine) tryBegin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recording {
		return false
	}
	e.recording = true
	return true
}

func (e *Engine) end() {
	e.mu.Lock()
	e.recording = false
	e.mu.Unlock()
	e.met.SetRecordingActive(false)
}

// Capture records req.Satellite for req.Duration and downsamples the
// result. It refuses with ErrBusy if a session is already active. On any
// pipeline error both processes are terminated, the flag is cleared, and
// the error is returned; a failed capture is not retried within the pass.
func (e *Engine) Capture(ctx context.Context, req Request) (Result, error) {
	if !e.tryBegin() {
		return Result{}, ErrBusy
	}
	defer e.end()

	e.met.IncCapturesStarted()
	e.met.SetRecordingActive(true)

	session := uuid.NewString()
	ts := time.Now().UTC().Format("20060102T150405Z")
	rawPath := filepath.Join(e.cfg.Data.SaveDir, fmt.Sprintf("%s-%s-raw.wav", req.Satellite, ts))
	outPath := filepath.Join(e.cfg.Data.SaveDir, fmt.Sprintf("%s-%s.wav", req.Satellite, ts))

	if err := os.MkdirAll(e.cfg.Data.SaveDir, 0o755); err != nil {
		e.met.IncCapturesFailed()
		return Result{}, fmt.Errorf("capture: save dir: %w", err)
	}

	e.sink.Publish(status.NewLog("capture", "info",
		fmt.Sprintf("recording %s at %d Hz for %s -> %s", req.Satellite, req.FreqHz, req.Duration.Truncate(time.Second), filepath.Base(rawPath))))

	// The duration timer is the teardown authority: when it fires, both
	// pipeline processes are killed through the context.
	runCtx, cancel := context.WithTimeout(ctx, req.Duration)
	defer cancel()

	e.sink.Publish(status.NewProgress("capture", "record", 0, req.Satellite))

	var err error
	if e.cfg.SDR.Simulate {
		err = e.simulate(runCtx, req, rawPath, outPath)
	} else {
		err = e.record(runCtx, req, rawPath, outPath)
	}
	if err != nil {
		e.met.IncCapturesFailed()
		e.sink.Publish(status.NewLog("capture", "error", "capture failed: "+err.Error()))
		return Result{}, err
	}

	e.met.IncCapturesCompleted()
	e.sink.Publish(status.NewProgress("capture", "complete", 100, filepath.Base(outPath)))
	e.sink.Publish(status.NewLog("capture", "info",
		fmt.Sprintf("finished %s, artifact %s", req.Satellite, filepath.Base(outPath))))

	return Result{SessionID: session, RawPath: rawPath, Path: outPath}, nil
}

// record runs the live pipeline and then the downsampling pass. The raw
// intermediate file is retained.
func (e *Engine) record(ctx context.Context, req Request, rawPath, outPath string) error {
	p := newPipeline(ctx, e.cfg.SDR, req.FreqHz, rawPath, e.log)
	if err := p.run(ctx); err != nil {
		return err
	}

	e.sink.Publish(status.NewProgress("capture", "downsample", 50, filepath.Base(rawPath)))

	// Downsampling runs after the duration window, on the parent context's
	// budget rather than the expired capture deadline.
	return downsample(context.WithoutCancel(ctx), rawPath, outPath, e.cfg.SDR.OutputRate, e.log)
}

// simulate writes a synthetic 2400 Hz tone (the APT subcarrier) at both
// rates, exercising the artifact contract without hardware or subprocesses.
func (e *Engine) simulate(ctx context.Context, req Request, rawPath, outPath string) error {
	seconds := int(req.Duration.Seconds())
	if err := writeToneWAV(ctx, rawPath, e.cfg.SDR.CaptureRate, seconds); err != nil {
		return fmt.Errorf("capture: simulate raw: %w", err)
	}
	e.sink.Publish(status.NewProgress("capture", "downsample", 50, filepath.Base(rawPath)))
	if err := writeToneWAV(ctx, outPath, e.cfg.SDR.OutputRate, seconds); err != nil {
		return fmt.Errorf("capture: simulate downsampled: %w", err)
	}
	return nil
}
