package capture

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/kf7zyx/skywatch/internal/config"
)

// pipeline owns the two cooperating capture processes: the demodulator
// (rtl_fm emitting s16 mono PCM on stdout) and the encoder (sox consuming
// that stream and writing the raw-rate WAV). Both handles live and die
// together; error propagation in either direction is the single teardown
// path in run.
type pipeline struct {
	demod  *exec.Cmd
	encode *exec.Cmd
	log    *log.Logger
}

// newPipeline builds the process pair with the demodulator's stdout wired
// directly into the encoder's stdin via a kernel pipe, no intermediate
// buffering.
func newPipeline(ctx context.Context, sdr config.SDRConfig, freqHz int, rawPath string, logger *log.Logger) *pipeline {
	demod := exec.CommandContext(ctx, "rtl_fm",
		"-f", fmt.Sprintf("%d", freqHz),
		"-s", fmt.Sprintf("%d", sdr.CaptureRate),
		"-g", fmt.Sprintf("%.1f", sdr.Gain),
		"-p", fmt.Sprintf("%d", sdr.PPMCorrection),
		"-d", fmt.Sprintf("%d", sdr.DeviceIndex),
		"-E", "dc",
		"-M", "fm",
		"-",
	)

	encode := exec.CommandContext(ctx, "sox",
		"-t", "raw",
		"-r", fmt.Sprintf("%d", sdr.CaptureRate),
		"-e", "signed",
		"-b", "16",
		"-c", "1",
		"-", rawPath,
	)

	return &pipeline{demod: demod, encode: encode, log: logger}
}

// run starts both processes and blocks until both have exited. The normal
// exit path is the duration deadline on ctx killing the pair; that is not
// an error. If either process fails on its own, the sibling is killed and
// the first failure is returned.
func (p *pipeline) run(ctx context.Context) error {
	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("capture: pipe: %w", err)
	}
	p.demod.Stdout = pw
	p.encode.Stdin = pr

	if err := p.demod.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("capture: start demodulator: %w", err)
	}
	if err := p.encode.Start(); err != nil {
		p.kill(p.demod)
		_ = p.demod.Wait()
		pr.Close()
		pw.Close()
		return fmt.Errorf("capture: start encoder: %w", err)
	}

	// The children hold their own pipe fds now; the parent's copies must go
	// so the encoder sees EOF when the demodulator exits.
	pw.Close()
	pr.Close()

	demodDone := make(chan error, 1)
	go func() { demodDone <- p.demod.Wait() }()
	encodeDone := make(chan error, 1)
	go func() { encodeDone <- p.encode.Wait() }()

	var firstErr error
	for i := 0; i < 2; i++ {
		var err error
		var side string
		select {
		case err = <-demodDone:
			side = "demodulator"
			demodDone = nil
		case err = <-encodeDone:
			side = "encoder"
			encodeDone = nil
		}

		if err != nil && ctx.Err() == nil && firstErr == nil {
			firstErr = fmt.Errorf("capture: %s: %w", side, err)
			p.log.Printf("capture: %s failed, terminating sibling: %v", side, err)
			p.kill(p.demod)
			p.kill(p.encode)
		}
	}

	// Deadline or cancellation is the planned teardown, not a failure.
	if ctx.Err() != nil {
		return nil
	}
	return firstErr
}

// kill is a safety net on top of CommandContext's own kill-on-cancel.
func (p *pipeline) kill(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// downsample converts the raw-rate capture to the target rate, judged by
// the process exit code. The raw input file is left in place.
func downsample(ctx context.Context, rawPath, outPath string, outputRate int, logger *log.Logger) error {
	dsCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(dsCtx, "sox", rawPath, "-r", fmt.Sprintf("%d", outputRate), outPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("capture: downsample %s: %w: %s", rawPath, err, out)
	}
	logger.Printf("capture: downsampled %s -> %s at %d Hz", rawPath, outPath, outputRate)
	return nil
}
