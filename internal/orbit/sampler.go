package orbit

import "time"

// Observer is a fixed ground station position. The ECEF coordinates are
// precomputed once so they can be reused across many samples.
type Observer struct {
	LatDeg, LonDeg, AltM float64

	latRad, lonRad      float64
	ecefX, ecefY, ecefZ float64
}

// NewObserver creates an Observer from geodetic coordinates in degrees and
// meters above the WGS-84 ellipsoid.
func NewObserver(latDeg, lonDeg, altM float64) Observer {
	x, y, z := geodeticToECEF(latDeg, lonDeg, altM)
	return Observer{
		LatDeg: latDeg,
		LonDeg: lonDeg,
		AltM:   altM,
		latRad: latDeg * degToRad,
		lonRad: lonDeg * degToRad,
		ecefX:  x,
		ecefY:  y,
		ecefZ:  z,
	}
}

// Sample is one observer-relative measurement of an orbiting object.
type Sample struct {
	Time         time.Time
	SubLatDeg    float64 // geodetic sub-point latitude
	SubLonDeg    float64 // geodetic sub-point longitude
	ElevationDeg float64 // angle above the observer's horizon
	DistanceKm   float64 // great-circle distance from station to sub-point
}

// Sampler produces Samples for one object at arbitrary timestamps.
type Sampler struct {
	prop *Propagator
	obs  Observer
}

// NewSampler binds a propagator for the given element lines to an observer.
func NewSampler(name, line1, line2 string, obs Observer) (*Sampler, error) {
	prop, err := NewPropagator(name, line1, line2)
	if err != nil {
		return nil, err
	}
	return &Sampler{prop: prop, obs: obs}, nil
}

// Sample propagates the object to t and derives the sub-point, elevation,
// and ground-track distance relative to the observer.
func (s *Sampler) Sample(t time.Time) (Sample, error) {
	x, y, z, err := s.prop.positionTEME(t)
	if err != nil {
		return Sample{}, err
	}

	ex, ey, ez := temeToECEF(x, y, z, t)
	subLat, subLon, _ := ecefToGeodetic(ex, ey, ez)

	return Sample{
		Time:         t,
		SubLatDeg:    subLat,
		SubLonDeg:    subLon,
		ElevationDeg: elevationAngle(s.obs, ex, ey, ez),
		DistanceKm:   greatCircleKm(s.obs.LatDeg, s.obs.LonDeg, subLat, subLon),
	}, nil
}
