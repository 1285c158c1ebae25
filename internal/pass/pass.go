// Package pass detects discrete observation windows from sampled orbital
// positions and maintains the persistent, deduplicated pass queue that the
// recording scheduler consumes.
package pass

import (
	"time"
)

// Pass is one bounded observation window for a tracked object. Created by
// the Segmenter, buffered on both ends, and mutated in place (recorded flag)
// by the scheduler. Passes are never deleted individually; the whole store
// is cleared and rebuilt each refresh cycle.
type Pass struct {
	Satellite       string    `json:"satellite"`
	FreqHz          int       `json:"freq_hz"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	MaxElevation    float64   `json:"max_elevation"`
	AvgElevation    float64   `json:"avg_elevation"`
	MinDistanceKm   float64   `json:"min_distance_km"`
	AvgDistanceKm   float64   `json:"avg_distance_km"`
	Recorded        bool      `json:"recorded"`
}

// Key is the uniqueness key: object name plus start truncated to the
// minute. Two segmentation runs over the same elements produce identical
// keys, which is what makes merge idempotent.
func (p Pass) Key() string {
	return p.Satellite + "|" + p.Start.UTC().Truncate(time.Minute).Format(time.RFC3339)
}

// End is the scheduled end of the window.
func (p Pass) End() time.Time {
	return p.Start.Add(time.Duration(p.DurationMinutes) * time.Minute)
}

// Contains reports whether t falls inside [Start, End).
func (p Pass) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End())
}
