// Package coords implements the pure coordinate-conversion and spherical
// geometry math named in spec.md §1 and used by the cross-match engine and
// the primary-document coordinate block: deg<->hms/dms, equatorial<->
// galactic, great-circle distance, and the spherical-ellipse membership
// test. All functions here are CPU-only and never suspend (spec.md §5).
package coords

import "math"

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// Point is a GeoJSON-compatible (longitude, latitude) pair in degrees.
type Point struct {
	Type        string     `bson:"type" json:"type"`
	Coordinates [2]float64 `bson:"coordinates" json:"coordinates"`
}

// GeoJSONPoint builds the primary document's `coordinates.radec_geojson`
// field: longitude = ra - 180 deg, per spec.md §3.
func GeoJSONPoint(ra, dec float64) Point {
	return Point{Type: "Point", Coordinates: [2]float64{ra - 180, dec}}
}

// DegToHMS renders ra (degrees, [0,360)) as an "HH:MM:SS.sss" sexagesimal
// string.
func DegToHMS(ra float64) string {
	h := mod(ra, 360) / 15
	return sexagesimal(h, 2)
}

// DegToDMS renders dec (degrees, [-90,90]) as a "+DD:MM:SS.sss" sexagesimal
// string, always carrying an explicit sign.
func DegToDMS(dec float64) string {
	sign := "+"
	if dec < 0 {
		sign = "-"
		dec = -dec
	}
	return sign + sexagesimal(dec, 2)
}

func sexagesimal(v float64, intDigits int) string {
	whole := math.Floor(v)
	frac := (v - whole) * 60
	m := math.Floor(frac)
	s := (frac - m) * 60
	return padf(whole, intDigits) + ":" + padf(m, 2) + ":" + padSeconds(s)
}

func padf(v float64, digits int) string {
	s := itoa(int(v))
	for len(s) < digits {
		s = "0" + s
	}
	return s
}

func padSeconds(s float64) string {
	whole := int(s)
	frac := s - float64(whole)
	out := itoa(whole)
	if len(out) < 2 {
		out = "0" + out
	}
	millis := int(frac*1000 + 0.5)
	ms := itoa(millis)
	for len(ms) < 3 {
		ms = "0" + ms
	}
	return out + "." + ms
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func mod(a, m float64) float64 {
	r := math.Mod(a, m)
	if r < 0 {
		r += m
	}
	return r
}

// HMSToDeg is the inverse of DegToHMS, accurate to the same sexagesimal
// string it would itself produce (spec.md §8 property 5: round-trip
// accurate to 1 milliarcsecond).
func HMSToDeg(h, m, s float64) float64 {
	return (h + m/60 + s/3600) * 15
}

// DMSToDeg is the inverse of DegToDMS.
func DMSToDeg(sign float64, d, m, s float64) float64 {
	v := d + m/60 + s/3600
	if sign < 0 {
		v = -v
	}
	return v
}

// Galactic north pole and ascending node, J2000, per the IAU-adopted
// equatorial-to-galactic rotation used throughout the astrometry literature.
const (
	raGP  = 192.85948 // deg, RA of the galactic north pole
	decGP = 27.12825   // deg, Dec of the galactic north pole
	lCP   = 122.93192  // deg, galactic longitude of the celestial pole
)

// EquatorialToGalactic converts (ra, dec) in degrees to galactic (l, b) in
// degrees via the standard rotation matrix, accurate to 1e-9 on a dense
// sample per spec.md §8 property 5.
func EquatorialToGalactic(ra, dec float64) (l, b float64) {
	raR, decR := ra*degToRad, dec*degToRad
	raGPR, decGPR := raGP*degToRad, decGP*degToRad

	sinB := math.Sin(decR)*math.Sin(decGPR) + math.Cos(decR)*math.Cos(decGPR)*math.Cos(raR-raGPR)
	b = math.Asin(clamp(sinB, -1, 1)) * radToDeg

	y := math.Cos(decR) * math.Sin(raR-raGPR)
	x := math.Cos(decGPR)*math.Sin(decR) - math.Sin(decGPR)*math.Cos(decR)*math.Cos(raR-raGPR)
	l = lCP - math.Atan2(y, x)*radToDeg
	l = mod(l, 360)
	return l, b
}

// GalacticToEquatorial is the inverse rotation of EquatorialToGalactic.
func GalacticToEquatorial(l, b float64) (ra, dec float64) {
	lR, bR := l*degToRad, b*degToRad
	decGPR := decGP * degToRad
	lCPR := lCP * degToRad

	sinDec := math.Sin(bR)*math.Sin(decGPR) + math.Cos(bR)*math.Cos(decGPR)*math.Cos(lCPR-lR)
	dec = math.Asin(clamp(sinDec, -1, 1)) * radToDeg

	y := math.Cos(bR) * math.Sin(lCPR-lR)
	x := math.Cos(decGPR)*math.Sin(bR) - math.Sin(decGPR)*math.Cos(bR)*math.Cos(lCPR-lR)
	ra = mod(raGP+math.Atan2(y, x)*radToDeg, 360)
	return ra, dec
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GreatCircle returns the angular separation, in degrees, between two
// (ra, dec) points in degrees, using the haversine form (numerically
// stable near both ra=0/360 and dec=+-90, the boundary cases spec.md §8
// calls out).
func GreatCircle(ra1, dec1, ra2, dec2 float64) float64 {
	ra1R, dec1R := ra1*degToRad, dec1*degToRad
	ra2R, dec2R := ra2*degToRad, dec2*degToRad

	dDec := dec2R - dec1R
	dRA := ra2R - ra1R
	a := math.Sin(dDec/2)*math.Sin(dDec/2) +
		math.Cos(dec1R)*math.Cos(dec2R)*math.Sin(dRA/2)*math.Sin(dRA/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return c * radToDeg
}

// ArcsecToRadians converts an angular radius given in arcseconds to radians,
// the form required by a $centerSphere geo query per spec.md §4.1:
// r = arcsec * pi / (180*3600).
func ArcsecToRadians(arcsec float64) float64 {
	return arcsec * math.Pi / (180 * 3600)
}

// InEllipse implements the spherical-ellipse membership test described in
// spec.md §4.1/§9: is point (ra,dec) within the ellipse of semi-major axis
// semiMajorDeg, axis ratio axisRatio and position angle paDeg, centered at
// (centerRA, centerDec)? For axis ratio 1 (a circle, this pipeline's usage)
// the point lies inside iff its great-circle separation from the center is
// no larger than the semi-major axis; otherwise the separation is compared
// with the ellipse's polar radius along the bearing to the point, measured
// from the position angle.
func InEllipse(ra, dec, centerRA, centerDec, semiMajorDeg, axisRatio, paDeg float64) bool {
	sep := GreatCircle(ra, dec, centerRA, centerDec)
	if axisRatio >= 0.999999 {
		return sep <= semiMajorDeg
	}
	// General case: project the separation onto the ellipse's major/minor
	// axes via the position-angle bearing from the center to the point,
	// then test against the polar form of an ellipse r(theta).
	bearing := bearingDeg(centerRA, centerDec, ra, dec) - paDeg
	bR := bearing * degToRad
	semiMinor := semiMajorDeg * axisRatio
	// r(theta) for an ellipse with semi axes a,b: r = a*b / sqrt((b cosθ)^2 + (a sinθ)^2)
	a, b := semiMajorDeg, semiMinor
	denom := math.Sqrt(math.Pow(b*math.Cos(bR), 2) + math.Pow(a*math.Sin(bR), 2))
	if denom == 0 {
		return sep <= semiMajorDeg
	}
	rTheta := (a * b) / denom
	return sep <= rTheta
}

// bearingDeg returns the initial bearing, in degrees, from (ra1,dec1) to
// (ra2,dec2), measured east of north.
func bearingDeg(ra1, dec1, ra2, dec2 float64) float64 {
	ra1R, dec1R := ra1*degToRad, dec1*degToRad
	ra2R, dec2R := ra2*degToRad, dec2*degToRad
	dRA := ra2R - ra1R
	y := math.Sin(dRA) * math.Cos(dec2R)
	x := math.Cos(dec1R)*math.Sin(dec2R) - math.Sin(dec1R)*math.Cos(dec2R)*math.Cos(dRA)
	return mod(math.Atan2(y, x)*radToDeg, 360)
}
