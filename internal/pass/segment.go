package pass

import (
	"log"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kf7zyx/skywatch/internal/orbit"
	"github.com/kf7zyx/skywatch/internal/tle"
)

const (
	// stepMinutes is the sampling cadence of the segmentation walk.
	stepMinutes = 1
	// floorMinutes is the minimum post-buffer pass duration; shorter passes
	// get their end extended.
	floorMinutes = 2
)

// Sampler is the slice of the orbit package the segmenter needs. Tests
// substitute synthetic elevation/distance sequences through it.
type Sampler interface {
	Sample(t time.Time) (orbit.Sample, error)
}

// SamplerFactory builds a Sampler for one element set and observer.
type SamplerFactory func(el tle.Element, obs orbit.Observer) (Sampler, error)

// OrbitSampler is the production SamplerFactory, backed by SGP4.
func OrbitSampler(el tle.Element, obs orbit.Observer) (Sampler, error) {
	return orbit.NewSampler(el.Name, el.Line1, el.Line2, obs)
}

// Segmenter walks a time range at fixed cadence and segments the timeline
// into discrete passes using elevation and ground-track distance
// thresholds.
type Segmenter struct {
	Observer      orbit.Observer
	HorizonDays   int
	MinElevation  float64 // degrees
	MaxDistanceKm float64
	BufferMinutes int
	FreqFor       func(name string) int

	Log        *log.Logger
	NewSampler SamplerFactory
}

// Segment computes all passes for every element in the set from now to
// now + horizon. A sample is in-view iff its distance and elevation both
// satisfy the thresholds; a running accumulator opens on the first in-view
// sample and closes on the first out-of-view sample or at the horizon
// boundary, which is evaluated exactly like a normal close.
func (s *Segmenter) Segment(set tle.ElementSet, now time.Time) []Pass {
	start := now.UTC().Truncate(time.Minute)
	end := start.Add(time.Duration(s.HorizonDays) * 24 * time.Hour)
	step := stepMinutes * time.Minute

	var passes []Pass
	for _, el := range set {
		sampler, err := s.NewSampler(el, s.Observer)
		if err != nil {
			s.Log.Printf("segment: skipping %s: %v", el.Name, err)
			continue
		}

		var (
			window []orbit.Sample
			openAt time.Time
			warned bool
		)

		t := start
		for ; !t.After(end); t = t.Add(step) {
			smp, err := sampler.Sample(t)
			if err != nil && !warned {
				s.Log.Printf("segment: %s: sample error: %v", el.Name, err)
				warned = true
			}

			inView := err == nil &&
				smp.DistanceKm <= s.MaxDistanceKm &&
				smp.ElevationDeg >= s.MinElevation

			switch {
			case inView && window == nil:
				openAt = t
				window = append(window, smp)
			case inView:
				window = append(window, smp)
			case window != nil:
				if p, ok := s.closeWindow(el, openAt, t, window); ok {
					passes = append(passes, p)
				}
				window = nil
			}
		}

		// Still open at the horizon boundary: close at the first unsampled
		// minute, same as any other close.
		if window != nil {
			if p, ok := s.closeWindow(el, openAt, t, window); ok {
				passes = append(passes, p)
			}
		}
	}
	return passes
}

// closeWindow turns an accumulated in-view window into a Pass. Windows
// whose peak never reaches the elevation threshold are discarded, which
// guards against pathological single-sample passes.
func (s *Segmenter) closeWindow(el tle.Element, openAt, closeAt time.Time, window []orbit.Sample) (Pass, bool) {
	elevs := make([]float64, len(window))
	dists := make([]float64, len(window))
	for i, smp := range window {
		elevs[i] = smp.ElevationDeg
		dists[i] = smp.DistanceKm
	}

	maxElev := floats.Max(elevs)
	if maxElev < s.MinElevation {
		return Pass{}, false
	}

	buffer := time.Duration(s.BufferMinutes) * time.Minute
	duration := int(closeAt.Sub(openAt).Minutes()) + 2*s.BufferMinutes
	if duration < floorMinutes {
		duration = floorMinutes
	}

	return Pass{
		Satellite:       el.Name,
		FreqHz:          s.FreqFor(el.Name),
		Start:           openAt.Add(-buffer),
		DurationMinutes: duration,
		MaxElevation:    maxElev,
		AvgElevation:    stat.Mean(elevs, nil),
		MinDistanceKm:   floats.Min(dists),
		AvgDistanceKm:   stat.Mean(dists, nil),
	}, true
}
