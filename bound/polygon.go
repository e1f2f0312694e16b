package bound

import (
	"math"
	"slices"

	"github.com/golang/geo/s2"
	"github.com/pdok/skypix/geomhelp"
	"github.com/pdok/skypix/pixel"
	"github.com/pdok/skypix/sphere"
)

// minPolygonArea (square degrees) separates real polygons from collinear vertices.
const minPolygonArea = 1e-12

// Polygon is a simple spherical polygon with geodesic edges. Of the two
// regions the vertex ring separates it always describes the smaller one, so
// the vertex order doesn't matter.
type Polygon struct {
	vertices []s2.Point
	loop     *s2.Loop
	area     float64
	circle   *Circle
}

// NewPolygon builds a polygon from its vertices. Repeated consecutive
// vertices (and a closing vertex equal to the first) are dropped; fewer than
// three distinct vertices, or vertices on one great circle, give an empty polygon.
func NewPolygon(vertices []s2.Point) *Polygon {
	p := &Polygon{}
	p.setVertices(vertices)
	return p
}

// PolygonFromEquatorial builds a polygon from (ra, dec) pairs in degrees.
func PolygonFromEquatorial(raDec [][2]float64) *Polygon {
	vertices := make([]s2.Point, len(raDec))
	for i, c := range raDec {
		vertices[i] = sphere.FromEquatorial(c[0], c[1])
	}
	return NewPolygon(vertices)
}

func (p *Polygon) setVertices(vertices []s2.Point) {
	pts := make([]s2.Point, 0, len(vertices))
	for _, v := range vertices {
		v = s2.Point{Vector: v.Normalize()}
		if len(pts) > 0 && pts[len(pts)-1].ApproxEqual(v) {
			continue
		}
		pts = append(pts, v)
	}
	for len(pts) > 1 && pts[len(pts)-1].ApproxEqual(pts[0]) {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 || onGreatCircle(pts) {
		return
	}

	reverse := isClockwise(pts)
	loop := loopFromPoints(pts, reverse)
	// the planar orientation check is approximate, a polygon always keeps
	// the smaller side of its boundary
	if loop.Area() > 2*math.Pi {
		loop = loopFromPoints(pts, !reverse)
	}
	area := loop.Area() * sphere.StradToDeg2
	if area < minPolygonArea {
		return
	}
	p.vertices = pts
	p.loop = loop
	p.area = area
}

func onGreatCircle(pts []s2.Point) bool {
	norm := pts[0].PointCross(pts[1]).Normalize()
	for _, pt := range pts[2:] {
		if math.Abs(norm.Dot(pt.Vector)) > 1e-12 {
			return false
		}
	}
	return true
}

func isClockwise(pts []s2.Point) bool {
	ring := make([][2]float64, len(pts))
	for i, pt := range pts {
		ra, dec := sphere.ToEquatorial(pt)
		ring[i] = [2]float64{ra, dec}
	}
	return geomhelp.IsClockwise(geomhelp.UnwrapLongitudes(ring))
}

func loopFromPoints(pts []s2.Point, reverse bool) *s2.Loop {
	pts = slices.Clone(pts)
	if reverse {
		slices.Reverse(pts)
	}
	return s2.LoopFromPoints(pts)
}

func (p *Polygon) Kind() Kind {
	return KindPolygon
}

// Vertices returns the distinct vertices in the order they were given.
func (p *Polygon) Vertices() []s2.Point {
	return p.vertices
}

func (p *Polygon) IsEmpty() bool {
	return p.loop == nil
}

func (p *Polygon) Size() int {
	return len(p.vertices)
}

func (p *Polygon) Clear() {
	*p = Polygon{}
}

func (p *Polygon) Area() float64 {
	return p.area
}

func (p *Polygon) ContainsPoint(pt s2.Point) bool {
	if p.IsEmpty() {
		return false
	}
	return p.loop.ContainsPoint(pt)
}

func (p *Polygon) ContainsCell(c pixel.Cell) bool {
	if p.IsEmpty() || !c.IsValid() {
		return false
	}
	return p.loop.ContainsCell(c.S2Cell())
}

func (p *Polygon) ContainedArea(c pixel.Cell) float64 {
	return containedArea(p, c)
}

func (p *Polygon) MayIntersect(c pixel.Cell) bool {
	if p.IsEmpty() {
		return false
	}
	return capMayIntersect(p.loop.CapBound(), c)
}

// Center is the normalized mean of the vertices.
func (p *Polygon) Center() s2.Point {
	if len(p.vertices) == 0 {
		return s2.Point{}
	}
	var sum s2.Point
	for _, v := range p.vertices {
		sum.Vector = sum.Add(v.Vector)
	}
	return s2.Point{Vector: sum.Normalize()}
}

func (p *Polygon) CircleBound() *Circle {
	if p.IsEmpty() {
		return &Circle{}
	}
	return circleFromCap(p.loop.CapBound())
}

func (p *Polygon) RandomPoint() s2.Point {
	return rejectionSample(p)
}

func (p *Polygon) region() s2.Region {
	if p.IsEmpty() {
		return s2.EmptyCap()
	}
	return p.loop
}

func (p *Polygon) sampler() *Circle {
	if p.circle == nil {
		p.circle = p.CircleBound()
	}
	return p.circle
}
