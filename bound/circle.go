package bound

import (
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
	"github.com/pdok/skypix/mathhelp"
	"github.com/pdok/skypix/pixel"
	"github.com/pdok/skypix/sphere"
)

// Circle is a spherical cap around axis. Height is the depth of the cap
// along the axis: 0 is a single point, 1 a hemisphere, 2 the whole sphere.
//
// The zero Circle is cleared: it encloses nothing, and the first AddPoint or
// AddCircle places it.
type Circle struct {
	axis   s2.Point
	height float64

	seed   *uint64
	random *circleRandom // nil until the first sample
}

// circleRandom is the sampling state of a Circle: a frame perpendicular to
// the axis, an azimuth offset and a generator.
type circleRandom struct {
	greatCircleNorm r3.Vector
	perpendicular   r3.Vector
	rotate          float64
	rng             *rand.Rand
}

func NewCircle(axis s2.Point, height float64) *Circle {
	return &Circle{
		axis:   s2.Point{Vector: axis.Normalize()},
		height: mathhelp.Clamp(height, 0, 2),
	}
}

// CircleFromHeight is NewCircle.
func CircleFromHeight(axis s2.Point, height float64) *Circle {
	return NewCircle(axis, height)
}

// CircleFromRadius creates a circle with an angular radius in degrees.
func CircleFromRadius(axis s2.Point, radius float64) *Circle {
	return NewCircle(axis, sphere.HeightForAngle(radius*sphere.DegToRad))
}

func (c *Circle) isSet() bool {
	return c.axis.Vector != (r3.Vector{})
}

func (c *Circle) Kind() Kind {
	return KindCircle
}

func (c *Circle) Axis() s2.Point {
	return c.axis
}

func (c *Circle) Height() float64 {
	return c.height
}

// Radius is the opening angle in degrees.
func (c *Circle) Radius() float64 {
	return sphere.AngleForHeight(c.height) * sphere.RadToDeg
}

func (c *Circle) IsEmpty() bool {
	return !c.isSet() || c.height <= 0
}

func (c *Circle) Size() int {
	return mathhelp.Bool2int(!c.IsEmpty())
}

func (c *Circle) Clear() {
	c.axis = s2.Point{}
	c.height = 0
	c.random = nil
}

func (c *Circle) Area() float64 {
	if c.IsEmpty() {
		return 0
	}
	return 2 * math.Pi * c.height * sphere.StradToDeg2
}

// depth of p below the cap's top, in the same units as the height
func (c *Circle) depth(p s2.Point) float64 {
	return 0.5 * c.axis.Sub(p.Normalize()).Norm2()
}

func (c *Circle) ContainsPoint(p s2.Point) bool {
	if !c.isSet() {
		return false
	}
	return c.depth(p) <= c.height
}

func (c *Circle) ContainsCell(cell pixel.Cell) bool {
	if c.IsEmpty() || !cell.IsValid() {
		return false
	}
	return c.cap().ContainsCell(cell.S2Cell())
}

func (c *Circle) ContainedArea(cell pixel.Cell) float64 {
	return containedArea(c, cell)
}

func (c *Circle) MayIntersect(cell pixel.Cell) bool {
	if c.IsEmpty() {
		return false
	}
	return capMayIntersect(c.cap(), cell)
}

func (c *Circle) Center() s2.Point {
	return c.axis
}

// CircleBound returns a copy without sampling state.
func (c *Circle) CircleBound() *Circle {
	return &Circle{axis: c.axis, height: c.height}
}

// AddPoint grows the cap just enough to contain p. It never shrinks.
func (c *Circle) AddPoint(p s2.Point) {
	if !c.isSet() {
		c.axis = s2.Point{Vector: p.Normalize()}
		c.height = 0
		c.random = nil
		return
	}
	if d := c.depth(p); d > c.height {
		c.height = mathhelp.Clamp(d, 0, 2)
	}
}

// AddCircle grows the cap just enough to contain o. It never shrinks.
func (c *Circle) AddCircle(o *Circle) {
	if o == nil || !o.isSet() {
		return
	}
	if !c.isSet() {
		c.axis = o.axis
		c.height = o.height
		c.random = nil
		return
	}
	angle := c.axis.Distance(o.axis).Radians() + sphere.AngleForHeight(o.height)
	if h := sphere.HeightForAngle(angle); h > c.height {
		c.height = h
	}
}

func (c *Circle) cap() s2.Cap {
	if !c.isSet() {
		return s2.EmptyCap()
	}
	return s2.CapFromCenterHeight(c.axis, c.height)
}

func (c *Circle) region() s2.Region {
	return c.cap()
}

func (c *Circle) sampler() *Circle {
	return c
}

// Seed fixes the generator seed. It resets the sampling state, so the next
// sample starts a reproducible sequence.
func (c *Circle) Seed(seed uint64) {
	c.seed = &seed
	c.random = nil
}

// Activate sets up the sampling state. It happens implicitly on the first
// sample; call it up front when the circle is handed to another goroutine.
func (c *Circle) Activate() {
	if c.random != nil {
		return
	}
	var rng *rand.Rand
	if c.seed != nil {
		rng = rand.New(rand.NewPCG(*c.seed, *c.seed^0x9e3779b97f4a7c15))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	norm := perpendicular(c.axis.Vector)
	c.random = &circleRandom{
		greatCircleNorm: norm,
		perpendicular:   c.axis.Cross(norm).Normalize(),
		rotate:          2 * math.Pi * rng.Float64(),
		rng:             rng,
	}
}

func (c *Circle) rng() *rand.Rand {
	c.Activate()
	return c.random.rng
}

// RandomPoint draws a point uniformly over the cap's area. The area of a cap
// grows linearly with its height, so a uniform depth gives a uniform area.
func (c *Circle) RandomPoint() s2.Point {
	if !c.isSet() {
		return c.axis
	}
	c.Activate()
	r := c.random
	h := c.height * r.rng.Float64()
	cosTheta := 1 - h
	sinTheta := math.Sqrt(math.Max(0, h*(2-h)))
	phi := r.rotate + 2*math.Pi*r.rng.Float64()

	around := r.greatCircleNorm.Mul(math.Cos(phi)).Add(r.perpendicular.Mul(math.Sin(phi)))
	v := c.axis.Mul(cosTheta).Add(around.Mul(sinTheta))
	return s2.Point{Vector: v.Normalize()}
}

// WeightedRandomPoints is the package level WeightedRandomPoints for a circle.
func (c *Circle) WeightedRandomPoints(n int, reference []sphere.WeightedPoint) ([]sphere.WeightedPoint, error) {
	return WeightedRandomPoints(c, n, reference)
}

// perpendicular returns a unit vector orthogonal to v.
func perpendicular(v r3.Vector) r3.Vector {
	ref := r3.Vector{X: 1}
	if math.Abs(v.X) > 0.6 {
		ref = r3.Vector{Y: 1}
	}
	return v.Cross(ref).Normalize()
}
