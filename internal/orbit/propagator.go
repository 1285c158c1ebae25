// Package orbit turns two-line element sets into observer-relative samples:
// geodetic sub-point, elevation above the local horizon, and great-circle
// distance from the ground station to the sub-point. SGP4 propagation is
// delegated to the go-satellite library; this package owns the frame
// conversions and the sampling contract.
package orbit

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// Propagator computes inertial positions for a single object from its
// element lines. Safe for sequential reuse across many timestamps.
//
// go-satellite calls log.Fatal on malformed input, so element lines are
// pre-validated before they reach the library.
type Propagator struct {
	sat  satellite.Satellite
	name string
}

// NewPropagator initializes an SGP4 model from the two element lines.
func NewPropagator(name, line1, line2 string) (*Propagator, error) {
	if err := checkElementLines(line1, line2); err != nil {
		return nil, fmt.Errorf("orbit: invalid elements for %s: %w", name, err)
	}

	sat := satellite.TLEToSat(strings.TrimSpace(line1), strings.TrimSpace(line2), satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("orbit: sgp4 init failed for %s: code=%d %s", name, sat.Error, sat.ErrorStr)
	}
	return &Propagator{sat: sat, name: name}, nil
}

// checkElementLines performs basic structural validation on element lines.
func checkElementLines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got %q", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got %q", line2[0])
	}
	return nil
}

// positionTEME returns the object's inertial position in km at t.
// Propagation failures surface as NaN/Inf or absurd magnitudes because the
// library does not return its internal error codes from Propagate.
func (p *Propagator) positionTEME(t time.Time) (x, y, z float64, err error) {
	t = t.UTC()
	pos, _ := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return 0, 0, 0, fmt.Errorf("orbit: propagation for %s produced NaN/Inf at %s", p.name, t.Format(time.RFC3339))
	}

	// Anything outside ~LEO..super-GEO means the model diverged.
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200 || mag > 50000 {
		return 0, 0, 0, fmt.Errorf("orbit: propagation for %s gave magnitude %.0f km at %s", p.name, mag, t.Format(time.RFC3339))
	}

	return pos.X, pos.Y, pos.Z, nil
}
