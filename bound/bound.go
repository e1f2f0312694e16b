// Package bound describes regions on the sphere. A Bound answers area,
// containment and intersection questions about cells, which is all the
// coverage package needs to pixelize it.
package bound

import (
	"fmt"

	"github.com/golang/geo/s2"
	"github.com/pdok/skypix/pixel"
	"github.com/pdok/skypix/sphere"
)

type Kind int

const (
	KindCircle Kind = iota
	KindPolygon
	KindLatLon
	KindCell
)

func (k Kind) String() string {
	switch k {
	case KindCircle:
		return "circle"
	case KindPolygon:
		return "polygon"
	case KindLatLon:
		return "latlon"
	case KindCell:
		return "cell"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Bound is implemented by Circle, Polygon, LatLon and CellBound only.
//
// Every Bound is enclosed by its CircleBound: ContainsPoint(p) implies
// CircleBound().ContainsPoint(p), and Area() <= CircleBound().Area().
// Areas are in square degrees.
type Bound interface {
	Kind() Kind
	IsEmpty() bool
	// Size is the number of defining elements (1 for a circle, the vertex count for a polygon), 0 when empty.
	Size() int
	Clear()
	Area() float64

	ContainsPoint(p s2.Point) bool
	// ContainsCell reports whether c lies entirely inside the bound. It may
	// return false for cells that are inside but touch the boundary.
	ContainsCell(c pixel.Cell) bool
	// ContainedArea is the part of c's area inside the bound, in square degrees.
	ContainedArea(c pixel.Cell) float64
	// MayIntersect is a cheap test: false means c and the bound are disjoint.
	MayIntersect(c pixel.Cell) bool

	Center() s2.Point
	CircleBound() *Circle
	// RandomPoint draws a point uniformly distributed over the bound.
	// Sampling state is per instance, so don't share a Bound between goroutines.
	RandomPoint() s2.Point

	region() s2.Region
	sampler() *Circle
}

const maxRejectionAttempts = 1 << 20

// rejectionSample draws points from the enclosing circle until one lands in b.
func rejectionSample(b Bound) s2.Point {
	if b.IsEmpty() {
		return b.Center()
	}
	circle := b.sampler()
	for i := 0; i < maxRejectionAttempts; i++ {
		p := circle.RandomPoint()
		if b.ContainsPoint(p) {
			return p
		}
	}
	return b.Center()
}

// containedAreaDepth is how many levels below the cell itself
// ContainedArea subdivides before it decides by cell centers.
const containedAreaDepth = 4

func containedArea(b Bound, c pixel.Cell) float64 {
	if b.IsEmpty() || !c.IsValid() || !b.MayIntersect(c) {
		return 0
	}
	if b.ContainsCell(c) {
		return c.ExactArea()
	}
	return subdividedArea(b, c, min(c.Level()+containedAreaDepth, pixel.MaxLevel))
}

func subdividedArea(b Bound, c pixel.Cell, level pixel.Level) float64 {
	if !b.MayIntersect(c) || !b.region().IntersectsCell(c.S2Cell()) {
		return 0
	}
	if b.ContainsCell(c) {
		return c.ExactArea()
	}
	if c.Level() >= level {
		if b.ContainsPoint(c.CenterPoint()) {
			return c.ExactArea()
		}
		return 0
	}
	area := 0.0
	for child := c.ChildBegin(); child != c.ChildEnd(); child = child.Next() {
		area += subdividedArea(b, child, level)
	}
	return area
}

// capMayIntersect compares the distance between the centers of the cap and
// the cell's bounding cap with the sum of both radii.
func capMayIntersect(cp s2.Cap, c pixel.Cell) bool {
	if cp.IsEmpty() || !c.IsValid() {
		return false
	}
	if cp.IsFull() {
		return true
	}
	cellCap := c.S2Cell().CapBound()
	d := cp.Center().Distance(cellCap.Center())
	return d <= cp.Radius()+cellCap.Radius()
}

func circleFromCap(cp s2.Cap) *Circle {
	if cp.IsEmpty() {
		return &Circle{}
	}
	return NewCircle(cp.Center(), cp.Height())
}

// ErrNoReferencePoints is returned by WeightedRandomPoints when none of the
// reference points fall inside the bound.
var ErrNoReferencePoints = fmt.Errorf("no reference points inside bound")

// WeightedRandomPoints draws n random points from b. Each point gets the
// weight of a reference point chosen uniformly among those inside b, so the
// weight distribution of the result follows the reference sample.
func WeightedRandomPoints(b Bound, n int, reference []sphere.WeightedPoint) ([]sphere.WeightedPoint, error) {
	var kept []sphere.WeightedPoint
	for _, r := range reference {
		if b.ContainsPoint(r.Point) {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil, ErrNoReferencePoints
	}
	rng := b.sampler().rng()
	points := make([]sphere.WeightedPoint, n)
	for i := range points {
		points[i] = sphere.WeightedPoint{
			Point:  b.RandomPoint(),
			Weight: kept[rng.IntN(len(kept))].Weight,
		}
	}
	return points, nil
}
