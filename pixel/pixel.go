// Package pixel implements the hierarchical pixelization of the sphere.
//
// A Cell is a thin value type around an S2 cell id: six faces, each recursively
// split into four children along a Hilbert curve, down to MaxLevel. The id
// encodes face, path and level in one uint64 such that all descendants of a
// cell lie in [RangeMin, RangeMax]; containment between cells is therefore an
// integer range check. Numeric id order is the pixel order used for sorting,
// deduplication and merging everywhere else.
//
// Levels:
//
//	level  0: a whole face, ~6876 sq. degrees
//	level 12: ~4.1e-4 sq. degrees (~1.3 arcmin on a side)
//	level 30: leaf, ~0.7 milliarcsecond on a side
package pixel

import (
	"fmt"
	"math"
	"slices"

	"github.com/golang/geo/s2"
	"github.com/pdok/skypix/mapslicehelp"
	"github.com/pdok/skypix/sphere"
)

const (
	MaxLevel = s2.MaxLevel
	NumFaces = 6
)

// Level is a resolution level, 0 (coarsest) to MaxLevel (finest).
type Level = int

type Cell struct {
	id s2.CellID
}

func New(id uint64) Cell {
	return Cell{id: s2.CellID(id)}
}

func FromCellID(id s2.CellID) Cell {
	return Cell{id: id}
}

// FromPoint returns the leaf cell containing p.
func FromPoint(p s2.Point) Cell {
	return Cell{id: s2.CellFromPoint(p).ID()}
}

// FromPointAt returns the cell at the given level containing p.
func FromPointAt(p s2.Point, level Level) Cell {
	if level < 0 || level > MaxLevel {
		return Cell{}
	}
	return Cell{id: s2.CellFromPoint(p).ID().Parent(level)}
}

// Face returns the level 0 cell of face f.
func Face(f int) Cell {
	if f < 0 || f >= NumFaces {
		return Cell{}
	}
	return Cell{id: s2.CellIDFromFace(f)}
}

// Faces returns the six level 0 cells in pixel order.
func Faces() []Cell {
	faces := make([]Cell, NumFaces)
	for f := range faces {
		faces[f] = Face(f)
	}
	return faces
}

func FromToken(token string) Cell {
	return Cell{id: s2.CellIDFromToken(token)}
}

func (c Cell) ID() uint64 {
	return uint64(c.id)
}

func (c Cell) CellID() s2.CellID {
	return c.id
}

func (c *Cell) SetID(id uint64) {
	c.id = s2.CellID(id)
}

func (c Cell) Token() string {
	return c.id.ToToken()
}

func (c Cell) String() string {
	if !c.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%s@%d", c.id.ToToken(), c.Level())
}

func (c Cell) Level() Level {
	if !c.IsValid() {
		return -1
	}
	return c.id.Level()
}

func (c Cell) Face() int {
	return c.id.Face()
}

func (c Cell) LSB() uint64 {
	return uint64(c.id) & -uint64(c.id)
}

// LSBForLevel returns the lowest set bit of every cell id at the given level.
func LSBForLevel(level Level) uint64 {
	return 1 << uint64(2*(MaxLevel-level))
}

func (c Cell) IsValid() bool {
	return c.id.IsValid()
}

func (c Cell) IsLeaf() bool {
	return c.IsValid() && c.id.IsLeaf()
}

func (c Cell) IsFace() bool {
	return c.IsValid() && c.id.Level() == 0
}

// Less is the pixel order.
func Less(a, b Cell) bool {
	return a.id < b.id
}

func Compare(a, b Cell) int {
	switch {
	case a.id < b.id:
		return -1
	case a.id > b.id:
		return 1
	}
	return 0
}

// Parent returns the cell one level up. A face has no parent.
func (c Cell) Parent() Cell {
	if !c.IsValid() || c.IsFace() {
		return Cell{}
	}
	return Cell{id: c.id.Parent(c.id.Level() - 1)}
}

// ParentAt returns the ancestor at the given level; the cell itself at its own level.
func (c Cell) ParentAt(level Level) Cell {
	if !c.IsValid() || level < 0 || level > c.id.Level() {
		return Cell{}
	}
	return Cell{id: c.id.Parent(level)}
}

// Children returns the four children in pixel order, nil for leaves.
func (c Cell) Children() []Cell {
	if !c.IsValid() || c.IsLeaf() {
		return nil
	}
	ids := c.id.Children()
	children := make([]Cell, len(ids))
	for i, id := range ids {
		children[i] = Cell{id: id}
	}
	return children
}

// ChildrenAt returns all descendants at the given (finer) level in pixel order.
func (c Cell) ChildrenAt(level Level) []Cell {
	if !c.IsValid() || level <= c.id.Level() || level > MaxLevel {
		return nil
	}
	children := make([]Cell, 0, 1<<(2*(level-c.id.Level())))
	for child, end := c.ChildBeginAt(level), c.ChildEndAt(level); child != end; child = child.Next() {
		children = append(children, child)
	}
	return children
}

// ChildBegin and ChildEnd allow iterating the children without allocating them:
//
//	for child := c.ChildBegin(); child != c.ChildEnd(); child = child.Next() {
func (c Cell) ChildBegin() Cell {
	return Cell{id: c.id.ChildBegin()}
}

func (c Cell) ChildBeginAt(level Level) Cell {
	return Cell{id: c.id.ChildBeginAtLevel(level)}
}

func (c Cell) ChildEnd() Cell {
	return Cell{id: c.id.ChildEnd()}
}

func (c Cell) ChildEndAt(level Level) Cell {
	return Cell{id: c.id.ChildEndAtLevel(level)}
}

// Next and Prev move along the curve at the same level. They step off the
// end of the last face (or before the first) into invalid ids; the wrapping
// versions don't.
func (c Cell) Next() Cell {
	return Cell{id: c.id.Next()}
}

func (c Cell) Prev() Cell {
	return Cell{id: c.id.Prev()}
}

func (c Cell) NextWrap() Cell {
	return Cell{id: c.id.NextWrap()}
}

func (c Cell) PrevWrap() Cell {
	return Cell{id: c.id.PrevWrap()}
}

// RangeMin is the smallest leaf id descending from this cell.
func (c Cell) RangeMin() Cell {
	return Cell{id: c.id.RangeMin()}
}

// RangeMax is the largest leaf id descending from this cell.
func (c Cell) RangeMax() Cell {
	return Cell{id: c.id.RangeMax()}
}

// ContainsCell reports whether o is this cell or one of its descendants.
func (c Cell) ContainsCell(o Cell) bool {
	if !c.IsValid() || !o.IsValid() {
		return false
	}
	return c.id.RangeMin() <= o.id && o.id <= c.id.RangeMax()
}

// Intersects reports whether one of the cells contains the other.
func (c Cell) Intersects(o Cell) bool {
	if !c.IsValid() || !o.IsValid() {
		return false
	}
	return o.id.RangeMin() <= c.id.RangeMax() && o.id.RangeMax() >= c.id.RangeMin()
}

func (c Cell) Contains(p s2.Point) bool {
	if !c.IsValid() {
		return false
	}
	return c.S2Cell().ContainsPoint(p)
}

// Neighbors returns the cells at the same level sharing an edge or a vertex.
func (c Cell) Neighbors() []Cell {
	return c.NeighborsAt(c.Level())
}

// NeighborsAt returns the cells at the given level that touch this cell (or,
// for a coarser level, the ancestor at that level) without overlapping it.
func (c Cell) NeighborsAt(level Level) []Cell {
	if !c.IsValid() || level < 0 || level > MaxLevel {
		return nil
	}
	id := c.id
	if level < id.Level() {
		id = id.Parent(level)
	}
	neighborIDs := id.AllNeighbors(level)
	slices.Sort(neighborIDs)
	neighborIDs = mapslicehelp.CompactSorted(neighborIDs)
	neighbors := make([]Cell, 0, len(neighborIDs))
	for _, n := range neighborIDs {
		if n != id && !id.Contains(n) {
			neighbors = append(neighbors, Cell{id: n})
		}
	}
	return neighbors
}

func (c Cell) S2Cell() s2.Cell {
	return s2.CellFromCellID(c.id)
}

func (c Cell) CenterPoint() s2.Point {
	return c.id.Point()
}

// Vertex returns vertex k (0..3) in counter-clockwise order.
func (c Cell) Vertex(k int) s2.Point {
	return c.S2Cell().Vertex(k)
}

// Edge returns the inward-facing normal of the great circle through vertex k and k+1.
func (c Cell) Edge(k int) s2.Point {
	return c.S2Cell().Edge(k)
}

// NearestEdgeDistance returns the distance in degrees from p to the closest point on the cell boundary.
func (c Cell) NearestEdgeDistance(p s2.Point) float64 {
	near, _, _ := c.EdgeDistances(p)
	return near
}

// FarthestEdgeDistance returns the distance in degrees from p to the farthest cell vertex.
func (c Cell) FarthestEdgeDistance(p s2.Point) float64 {
	_, far, _ := c.EdgeDistances(p)
	return far
}

// EdgeDistances returns the distances (degrees) to the nearest point of the
// boundary and to the farthest vertex. onEdge is false when the nearest
// boundary point is a vertex.
func (c Cell) EdgeDistances(p s2.Point) (near, far float64, onEdge bool) {
	cell := c.S2Cell()
	nearEdge := math.Inf(1)
	nearVertex := math.Inf(1)
	for k := 0; k < 4; k++ {
		a, b := cell.Vertex(k), cell.Vertex((k+1)%4)
		nearEdge = math.Min(nearEdge, s2.DistanceFromSegment(p, a, b).Degrees())
		d := p.Distance(a).Degrees()
		nearVertex = math.Min(nearVertex, d)
		far = math.Max(far, d)
	}
	return nearEdge, far, nearEdge < nearVertex
}

// ExactArea is the area of this cell in square degrees. Results are cached.
func (c Cell) ExactArea() float64 {
	if !c.IsValid() {
		return 0
	}
	if area, ok := exactAreas.Get(c.id); ok {
		return area
	}
	area := c.S2Cell().ExactArea() * sphere.StradToDeg2
	exactAreas.Add(c.id, area)
	return area
}

// AverageArea is the mean area in square degrees of a cell at this cell's level.
func (c Cell) AverageArea() float64 {
	if !c.IsValid() {
		return 0
	}
	return AverageAreaAt(c.Level())
}

// AverageAreaAt is the mean area in square degrees of a cell at the given level.
func AverageAreaAt(level Level) float64 {
	return s2.AvgAreaMetric.Value(level) * sphere.StradToDeg2
}

// LevelFromArea returns the first level whose average cell area is at most
// area. The result is not clamped: callers validate it against [0, MaxLevel].
func LevelFromArea(area float64) Level {
	return Level(math.Ceil(math.Log(21600.0/(math.Pi*area)) / math.Log(4.0)))
}

func IsValidLevel(level Level) bool {
	return level >= 0 && level <= MaxLevel
}

// Normalize replaces every complete group of four sibling cells by their
// parent, repeatedly. cells must be sorted and disjoint; the result is
// written in place.
func Normalize(cells []Cell) []Cell {
	out := cells[:0]
	for _, c := range cells {
		out = append(out, c)
		for {
			last := mapslicehelp.LastN(out, 4)
			if last == nil || !IsSiblingGroup(last) {
				break
			}
			out = append(out[:len(out)-4], last[0].Parent())
		}
	}
	return out
}

// IsSiblingGroup reports whether cells are exactly the four children of one parent, in order.
func IsSiblingGroup(cells []Cell) bool {
	if len(cells) != 4 || !cells[0].IsValid() || cells[0].IsFace() {
		return false
	}
	if cells[0] != cells[0].Parent().ChildBegin() {
		return false
	}
	for i := 1; i < 4; i++ {
		if cells[i] != cells[i-1].Next() {
			return false
		}
	}
	return true
}
