package transform

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// Site is a ground station in geodetic and ECEF form. The ECEF vector and the
// SEZ rotation terms are computed once so a site can be reused for every
// sample of a scan.
type Site struct {
	LatRad, LonRad, AltM float64
	ECEFx, ECEFy, ECEFz  float64

	sinLat, cosLat, sinLon, cosLon float64
}

// Topocentric holds azimuth, elevation and range from a site to a target.
type Topocentric struct {
	AzimuthDeg   float64 // 0 = North, clockwise, [0,360)
	ElevationDeg float64 // [-90,90]
	RangeKm      float64
}

// GeodeticPoint is a WGS-84 geodetic position.
type GeodeticPoint struct {
	LatDeg, LonDeg, AltM float64
}

// NewSite builds a Site from latitude/longitude in degrees and altitude in
// meters above the WGS-84 ellipsoid.
func NewSite(latDeg, lonDeg, altM float64) Site {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0

	s := Site{
		LatRad: lat,
		LonRad: lon,
		AltM:   altM,
		sinLat: math.Sin(lat),
		cosLat: math.Cos(lat),
		sinLon: math.Sin(lon),
		cosLon: math.Cos(lon),
	}

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*s.sinLat*s.sinLat)

	s.ECEFx = (n + altM) * s.cosLat * s.cosLon
	s.ECEFy = (n + altM) * s.cosLat * s.sinLon
	s.ECEFz = (n*(1-wgs84E2) + altM) * s.sinLat
	return s
}

// Look returns azimuth, elevation and range from the site to an ECEF target
// (meters), using the SEZ rotation of Vallado §4.4.
func (s Site) Look(satX, satY, satZ float64) Topocentric {
	rx := satX - s.ECEFx
	ry := satY - s.ECEFy
	rz := satZ - s.ECEFz

	south := s.sinLat*s.cosLon*rx + s.sinLat*s.sinLon*ry - s.cosLat*rz
	east := -s.sinLon*rx + s.cosLon*ry
	zenith := s.cosLat*s.cosLon*rx + s.cosLat*s.sinLon*ry + s.sinLat*rz

	rangeM := math.Sqrt(south*south + east*east + zenith*zenith)
	if rangeM == 0 {
		return Topocentric{ElevationDeg: 90}
	}

	el := math.Asin(math.Max(-1, math.Min(1, zenith/rangeM)))

	// North is -South in SEZ.
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}
	azDeg := az * 180.0 / math.Pi
	if azDeg >= 360 {
		azDeg -= 360
	}

	return Topocentric{
		AzimuthDeg:   azDeg,
		ElevationDeg: el * 180.0 / math.Pi,
		RangeKm:      rangeM / 1000.0,
	}
}

// ECEFToGeodetic converts ECEF meters to WGS-84 geodetic coordinates with a
// fixed number of Bowring iterations (converges in 2-3 for orbital radii).
func ECEFToGeodetic(x, y, z float64) GeodeticPoint {
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

	return GeodeticPoint{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lon * 180.0 / math.Pi,
		AltM:   alt,
	}
}
