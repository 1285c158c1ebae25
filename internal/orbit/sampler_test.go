package orbit

import (
	"math"
	"testing"
	"time"
)

// Real ISS orbital elements, epoch 2024-04-09. Propagation near the epoch
// stays well within the LEO sanity band.
const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

func TestPropagatorPositionNearEpoch(t *testing.T) {
	prop, err := NewPropagator("ISS", issLine1, issLine2)
	if err != nil {
		t.Fatalf("NewPropagator failed: %v", err)
	}

	x, y, z, err := prop.positionTEME(time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("positionTEME failed: %v", err)
	}

	// ISS altitude is ~420 km, so the magnitude should be ~6791 km.
	mag := math.Sqrt(x*x + y*y + z*z)
	if mag < 6500 || mag > 7000 {
		t.Errorf("position magnitude = %.1f km, want ~6791 km", mag)
	}
}

func TestPropagatorRejectsMalformedLines(t *testing.T) {
	cases := []struct {
		name   string
		l1, l2 string
	}{
		{"empty", "", ""},
		{"short line1", "1 25544U", issLine2},
		{"short line2", issLine1, "2 25544"},
		{"swapped prefixes", issLine2, issLine1},
	}

	for _, c := range cases {
		if _, err := NewPropagator(c.name, c.l1, c.l2); err == nil {
			t.Errorf("%s: expected error, got nil", c.name)
		}
	}
}

func TestSamplerProducesPlausibleSamples(t *testing.T) {
	obs := NewObserver(47.65, -122.3, 50)
	s, err := NewSampler("ISS", issLine1, issLine2, obs)
	if err != nil {
		t.Fatalf("NewSampler failed: %v", err)
	}

	start := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 90; i++ {
		smp, err := s.Sample(start.Add(time.Duration(i) * time.Minute))
		if err != nil {
			t.Fatalf("Sample at +%dm failed: %v", i, err)
		}

		if smp.SubLatDeg < -90 || smp.SubLatDeg > 90 {
			t.Fatalf("sub-point latitude %.2f out of range", smp.SubLatDeg)
		}
		if smp.SubLonDeg < -180 || smp.SubLonDeg > 180 {
			t.Fatalf("sub-point longitude %.2f out of range", smp.SubLonDeg)
		}
		if smp.ElevationDeg < -90 || smp.ElevationDeg > 90 {
			t.Fatalf("elevation %.2f out of range", smp.ElevationDeg)
		}
		if smp.DistanceKm < 0 || smp.DistanceKm > math.Pi*earthRadiusKm {
			t.Fatalf("distance %.1f km out of range", smp.DistanceKm)
		}
	}
}

// The ISS inclination is 51.6 degrees, so its sub-point latitude must never
// exceed that over a full orbit.
func TestSamplerSubPointBoundedByInclination(t *testing.T) {
	obs := NewObserver(0, 0, 0)
	s, err := NewSampler("ISS", issLine1, issLine2, obs)
	if err != nil {
		t.Fatalf("NewSampler failed: %v", err)
	}

	start := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 93; i++ {
		smp, err := s.Sample(start.Add(time.Duration(i) * time.Minute))
		if err != nil {
			t.Fatalf("Sample failed: %v", err)
		}
		if math.Abs(smp.SubLatDeg) > 52.5 {
			t.Fatalf("sub-point latitude %.2f exceeds inclination bound", smp.SubLatDeg)
		}
	}
}
