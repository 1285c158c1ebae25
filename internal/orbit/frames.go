package orbit

import (
	"math"
	"time"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared

	earthRadiusKm = 6371.0 // mean radius, used for great-circle distance

	j2000 = 2451545.0 // Julian Date of the J2000.0 epoch

	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// julianDate converts a UTC time to Julian Date using the standard
// astronomical algorithm.
func julianDate(t time.Time) float64 {
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	h := float64(t.Hour())
	min := float64(t.Minute())
	s := float64(t.Second()) + float64(t.Nanosecond())/1e9

	// Jan/Feb count as months 13/14 of the previous year.
	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	jd := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5
	jd += (h + min/60.0 + s/3600.0) / 24.0
	return jd
}

// gmst returns Greenwich Mean Sidereal Time in radians for a UTC time,
// per the IAU-82 model (Vallado Eq 3-47).
func gmst(t time.Time) float64 {
	tUT1 := (julianDate(t.UTC()) - j2000) / 36525.0

	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	sec = math.Mod(sec, 86400.0)
	if sec < 0 {
		sec += 86400.0
	}
	return sec / 86400.0 * 2.0 * math.Pi
}

// temeToECEF rotates a TEME position (km) about the Z axis by GMST,
// yielding an Earth-fixed position in meters. Polar motion and the equation
// of equinoxes are ignored; the ~50 m error is irrelevant at pass-detection
// granularity.
func temeToECEF(x, y, z float64, t time.Time) (ex, ey, ez float64) {
	theta := gmst(t)
	cosG := math.Cos(theta)
	sinG := math.Sin(theta)

	ex = (x*cosG + y*sinG) * 1000.0
	ey = (-x*sinG + y*cosG) * 1000.0
	ez = z * 1000.0
	return ex, ey, ez
}

// ecefToGeodetic converts an ECEF position in meters to geodetic latitude,
// longitude (degrees) and altitude (meters) by Bowring iteration.
func ecefToGeodetic(x, y, z float64) (latDeg, lonDeg, altM float64) {
	lon := math.Atan2(y, x)
	p := math.Sqrt(x*x + y*y)

	lat := math.Atan2(z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*n*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return lat * radToDeg, lon * radToDeg, alt
}

// geodeticToECEF converts geodetic coordinates (degrees, meters) to ECEF
// meters.
func geodeticToECEF(latDeg, lonDeg, altM float64) (x, y, z float64) {
	lat := latDeg * degToRad
	lon := lonDeg * degToRad

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	x = (n + altM) * cosLat * math.Cos(lon)
	y = (n + altM) * cosLat * math.Sin(lon)
	z = (n*(1-wgs84E2) + altM) * sinLat
	return x, y, z
}

// elevationAngle returns the elevation in degrees of a satellite at ECEF
// position (meters) as seen from the observer, using the SEZ topocentric
// rotation (Vallado Section 4.4).
func elevationAngle(obs Observer, satX, satY, satZ float64) float64 {
	rx := satX - obs.ecefX
	ry := satY - obs.ecefY
	rz := satZ - obs.ecefZ

	sinLat := math.Sin(obs.latRad)
	cosLat := math.Cos(obs.latRad)
	sinLon := math.Sin(obs.lonRad)
	cosLon := math.Cos(obs.lonRad)

	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rangeMag := math.Sqrt(south*south + east*east + zenith*zenith)
	return math.Asin(zenith/rangeMag) * radToDeg
}

// greatCircleKm returns the haversine distance in kilometers between two
// geodetic points given in degrees.
func greatCircleKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * degToRad
	phi2 := lat2 * degToRad
	dPhi := (lat2 - lat1) * degToRad
	dLambda := (lon2 - lon1) * degToRad

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
