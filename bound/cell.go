package bound

import (
	"github.com/golang/geo/s2"
	"github.com/pdok/skypix/mathhelp"
	"github.com/pdok/skypix/pixel"
)

// CellBound is a single cell used as a region.
type CellBound struct {
	cell   pixel.Cell
	circle *Circle
}

func NewCellBound(c pixel.Cell) *CellBound {
	return &CellBound{cell: c}
}

func (b *CellBound) Kind() Kind {
	return KindCell
}

func (b *CellBound) Cell() pixel.Cell {
	return b.cell
}

func (b *CellBound) IsEmpty() bool {
	return !b.cell.IsValid()
}

func (b *CellBound) Size() int {
	return mathhelp.Bool2int(!b.IsEmpty())
}

func (b *CellBound) Clear() {
	*b = CellBound{}
}

func (b *CellBound) Area() float64 {
	return b.cell.ExactArea()
}

func (b *CellBound) ContainsPoint(p s2.Point) bool {
	return b.cell.Contains(p)
}

func (b *CellBound) ContainsCell(c pixel.Cell) bool {
	return b.cell.ContainsCell(c)
}

// ContainedArea is exact: two cells either nest or are disjoint.
func (b *CellBound) ContainedArea(c pixel.Cell) float64 {
	switch {
	case b.cell.ContainsCell(c):
		return c.ExactArea()
	case c.ContainsCell(b.cell):
		return b.cell.ExactArea()
	}
	return 0
}

func (b *CellBound) MayIntersect(c pixel.Cell) bool {
	return b.cell.Intersects(c)
}

func (b *CellBound) Center() s2.Point {
	if b.IsEmpty() {
		return s2.Point{}
	}
	return b.cell.CenterPoint()
}

func (b *CellBound) CircleBound() *Circle {
	if b.IsEmpty() {
		return &Circle{}
	}
	return circleFromCap(b.cell.S2Cell().CapBound())
}

func (b *CellBound) RandomPoint() s2.Point {
	return rejectionSample(b)
}

func (b *CellBound) region() s2.Region {
	if b.IsEmpty() {
		return s2.EmptyCap()
	}
	return b.cell.S2Cell()
}

func (b *CellBound) sampler() *Circle {
	if b.circle == nil {
		b.circle = b.CircleBound()
	}
	return b.circle
}
