// Package sphere holds the few point primitives the rest of skypix builds on.
// Points are plain s2.Points (unit vectors); this package only converts between
// them and the equatorial coordinates (ra, dec in degrees) used in region files,
// and between cap heights and angles.
package sphere

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

const (
	DegToRad = math.Pi / 180.0
	RadToDeg = 180.0 / math.Pi
	// StradToDeg2 converts steradians to square degrees.
	StradToDeg2 = RadToDeg * RadToDeg
	// SphereArea is the area of the whole sphere in square degrees.
	SphereArea = 4.0 * math.Pi * StradToDeg2
)

// WeightedPoint is a position with an attached weight, e.g. a galaxy with a magnitude.
type WeightedPoint struct {
	Point  s2.Point
	Weight float64
}

// FromEquatorial returns the unit vector for right ascension ra and declination dec (degrees).
func FromEquatorial(ra, dec float64) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(dec, ra))
}

// ToEquatorial returns ra in [0, 360) and dec in [-90, 90], both in degrees.
func ToEquatorial(p s2.Point) (ra, dec float64) {
	ll := s2.LatLngFromPoint(p)
	ra = ll.Lng.Degrees()
	if ra < 0 {
		ra += 360.0
	}
	return ra, ll.Lat.Degrees()
}

// AngularDistance returns the great circle distance between a and b in degrees.
func AngularDistance(a, b s2.Point) float64 {
	return a.Distance(b).Degrees()
}

// HeightForAngle returns the cap height (1 - cos θ) for an opening angle θ in radians.
// Angles beyond π are clamped to the whole sphere.
func HeightForAngle(theta float64) float64 {
	if theta <= 0 {
		return 0
	}
	if theta >= math.Pi {
		return 2
	}
	// 2·sin²(θ/2) is 1 - cos θ without the cancellation for small angles
	s := math.Sin(0.5 * theta)
	return 2 * s * s
}

// AngleForHeight is the inverse of HeightForAngle, in radians.
func AngleForHeight(height float64) float64 {
	if height <= 0 {
		return 0
	}
	if height >= 2 {
		return math.Pi
	}
	return 2 * math.Asin(math.Sqrt(0.5*height))
}

// Angle converts degrees to an s1.Angle.
func Angle(degrees float64) s1.Angle {
	return s1.Angle(degrees * DegToRad)
}
