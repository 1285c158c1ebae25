package orbit

import (
	"math"
	"testing"
	"time"
)

func TestJulianDateJ2000Epoch(t *testing.T) {
	// 2000-01-01 12:00:00 UTC is by definition JD 2451545.0.
	jd := julianDate(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))
	if math.Abs(jd-2451545.0) > 1e-6 {
		t.Errorf("julianDate(J2000) = %.8f, want 2451545.0", jd)
	}
}

func TestJulianDateKnownValue(t *testing.T) {
	// 1999-01-01 00:00:00 UTC is JD 2451179.5 (Meeus, Astronomical Algorithms).
	jd := julianDate(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))
	if math.Abs(jd-2451179.5) > 1e-6 {
		t.Errorf("julianDate(1999-01-01) = %.8f, want 2451179.5", jd)
	}
}

func TestGeodeticECEFRoundTrip(t *testing.T) {
	cases := []struct {
		lat, lon, alt float64
	}{
		{0, 0, 0},
		{45.0, -122.5, 120.0},
		{-33.9, 151.2, 30.0},
		{78.2, 15.6, 0},
	}

	for _, c := range cases {
		x, y, z := geodeticToECEF(c.lat, c.lon, c.alt)
		lat, lon, alt := ecefToGeodetic(x, y, z)

		if math.Abs(lat-c.lat) > 1e-5 {
			t.Errorf("lat round trip: got %.6f, want %.6f", lat, c.lat)
		}
		if math.Abs(lon-c.lon) > 1e-5 {
			t.Errorf("lon round trip: got %.6f, want %.6f", lon, c.lon)
		}
		if math.Abs(alt-c.alt) > 1.0 {
			t.Errorf("alt round trip: got %.2f, want %.2f", alt, c.alt)
		}
	}
}

func TestElevationAngleAtZenith(t *testing.T) {
	// Satellite directly over an equatorial observer sits at the zenith.
	obs := NewObserver(0, 0, 0)
	elev := elevationAngle(obs, wgs84A+800000.0, 0, 0)
	if math.Abs(elev-90.0) > 0.01 {
		t.Errorf("zenith elevation = %.4f, want 90", elev)
	}
}

func TestElevationAngleBelowHorizon(t *testing.T) {
	// A satellite over the antipode is far below the horizon.
	obs := NewObserver(0, 0, 0)
	elev := elevationAngle(obs, -(wgs84A + 800000.0), 0, 0)
	if elev > -45 {
		t.Errorf("antipodal elevation = %.2f, want well below horizon", elev)
	}
}

func TestGreatCircleQuarterCircumference(t *testing.T) {
	// Equator to a point 90 degrees east: a quarter of the circumference.
	want := math.Pi / 2 * earthRadiusKm
	got := greatCircleKm(0, 0, 0, 90)
	if math.Abs(got-want) > 1.0 {
		t.Errorf("greatCircleKm(0,0 -> 0,90) = %.2f, want %.2f", got, want)
	}
}

func TestGreatCircleZeroDistance(t *testing.T) {
	if d := greatCircleKm(47.6, -122.3, 47.6, -122.3); d != 0 {
		t.Errorf("distance to self = %.4f, want 0", d)
	}
}
