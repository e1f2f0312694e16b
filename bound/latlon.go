package bound

import (
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/pdok/skypix/mathhelp"
	"github.com/pdok/skypix/pixel"
	"github.com/pdok/skypix/sphere"
)

// LatLon is a rectangle in equatorial coordinates: a declination band
// intersected with a right ascension range. The ra range runs eastward from
// raMin to raMax and may wrap through 0.
type LatLon struct {
	rect   s2.Rect
	circle *Circle
}

// NewLatLon creates a rectangle from declination and right ascension limits
// in degrees. The declinations may be given in either order; a ra range of
// 360 degrees or more is the full circle.
func NewLatLon(decMin, decMax, raMin, raMax float64) *LatLon {
	lat := r1.Interval{
		Lo: mathhelp.Clamp(math.Min(decMin, decMax), -90, 90) * sphere.DegToRad,
		Hi: mathhelp.Clamp(math.Max(decMin, decMax), -90, 90) * sphere.DegToRad,
	}
	var lng s1.Interval
	if raMax-raMin >= 360 {
		lng = s1.FullInterval()
	} else {
		lng = s1.IntervalFromEndpoints(
			math.Remainder(raMin, 360)*sphere.DegToRad,
			math.Remainder(raMax, 360)*sphere.DegToRad)
	}
	return &LatLon{rect: s2.Rect{Lat: lat, Lng: lng}}
}

func (r *LatLon) Kind() Kind {
	return KindLatLon
}

func (r *LatLon) DecMin() float64 {
	return r.rect.Lat.Lo * sphere.RadToDeg
}

func (r *LatLon) DecMax() float64 {
	return r.rect.Lat.Hi * sphere.RadToDeg
}

// RaMin is in [0, 360).
func (r *LatLon) RaMin() float64 {
	return normalizeRa(r.rect.Lng.Lo * sphere.RadToDeg)
}

// RaMax is in [0, 360).
func (r *LatLon) RaMax() float64 {
	return normalizeRa(r.rect.Lng.Hi * sphere.RadToDeg)
}

func normalizeRa(ra float64) float64 {
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	return ra
}

func (r *LatLon) IsEmpty() bool {
	return r.rect.IsEmpty() || r.Area() <= 0
}

func (r *LatLon) Size() int {
	return mathhelp.Bool2int(!r.IsEmpty())
}

func (r *LatLon) Clear() {
	r.rect = s2.EmptyRect()
	r.circle = nil
}

// Area of the band between two declinations over an ra range is
// Δra·(sin(dec1) - sin(dec0)).
func (r *LatLon) Area() float64 {
	if r.rect.IsEmpty() {
		return 0
	}
	return r.rect.Lng.Length() * (math.Sin(r.rect.Lat.Hi) - math.Sin(r.rect.Lat.Lo)) * sphere.StradToDeg2
}

func (r *LatLon) ContainsPoint(p s2.Point) bool {
	if r.IsEmpty() {
		return false
	}
	return r.rect.ContainsPoint(p)
}

func (r *LatLon) ContainsCell(c pixel.Cell) bool {
	if r.IsEmpty() || !c.IsValid() {
		return false
	}
	return r.rect.ContainsCell(c.S2Cell())
}

func (r *LatLon) ContainedArea(c pixel.Cell) float64 {
	return containedArea(r, c)
}

func (r *LatLon) MayIntersect(c pixel.Cell) bool {
	if r.IsEmpty() || !c.IsValid() {
		return false
	}
	return r.rect.Intersects(c.S2Cell().RectBound())
}

func (r *LatLon) Center() s2.Point {
	return s2.PointFromLatLng(r.rect.Center())
}

func (r *LatLon) CircleBound() *Circle {
	if r.IsEmpty() {
		return &Circle{}
	}
	return circleFromCap(r.rect.CapBound())
}

func (r *LatLon) RandomPoint() s2.Point {
	return rejectionSample(r)
}

func (r *LatLon) region() s2.Region {
	return r.rect
}

func (r *LatLon) sampler() *Circle {
	if r.circle == nil {
		r.circle = r.CircleBound()
	}
	return r.circle
}
