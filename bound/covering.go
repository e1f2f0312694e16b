package bound

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/pdok/skypix/mathhelp"
	"github.com/pdok/skypix/pixel"
)

// DefaultMaxCells is the cell budget of Covering.
const DefaultMaxCells = 8

// WalkFunc receives the cells of a walk. inside is true for cells entirely in
// the bound and false for cells at the maximum level on its boundary.
type WalkFunc func(c pixel.Cell, inside bool)

// Walk descends from the six faces and visits the adaptive pixelization of b:
// every cell that lies inside b but whose parent doesn't, and every cell at
// maxLevel that straddles the boundary. Cells are visited in pixel order and
// never overlap.
func Walk(b Bound, maxLevel pixel.Level, fn WalkFunc) {
	if b.IsEmpty() {
		return
	}
	maxLevel = mathhelp.Clamp(maxLevel, 0, pixel.MaxLevel)
	region := b.region()
	for _, face := range pixel.Faces() {
		walk(b, region, face, maxLevel, fn)
	}
}

func walk(b Bound, region s2.Region, c pixel.Cell, maxLevel pixel.Level, fn WalkFunc) {
	if !b.MayIntersect(c) {
		return
	}
	if b.ContainsCell(c) {
		fn(c, true)
		return
	}
	if !region.IntersectsCell(c.S2Cell()) {
		return
	}
	if c.Level() >= maxLevel {
		fn(c, false)
		return
	}
	for child := c.ChildBegin(); child != c.ChildEnd(); child = child.Next() {
		walk(b, region, child, maxLevel, fn)
	}
}

// AdaptiveCovering returns all cells of a Walk, inside and boundary alike: a
// conservative covering whose cells are as coarse as the bound allows.
func AdaptiveCovering(b Bound, maxLevel pixel.Level) []pixel.Cell {
	var cells []pixel.Cell
	Walk(b, maxLevel, func(c pixel.Cell, _ bool) {
		cells = append(cells, c)
	})
	return pixel.Normalize(cells)
}

// InteriorCovering returns only the cells entirely inside b, no coarser than
// needed and no finer than maxLevel.
func InteriorCovering(b Bound, maxLevel pixel.Level) []pixel.Cell {
	var cells []pixel.Cell
	Walk(b, maxLevel, func(c pixel.Cell, inside bool) {
		if inside {
			cells = append(cells, c)
		}
	})
	return pixel.Normalize(cells)
}

// SimpleCovering returns every cell at exactly level that intersects b.
func SimpleCovering(b Bound, level pixel.Level) []pixel.Cell {
	if !pixel.IsValidLevel(level) {
		return nil
	}
	var cells []pixel.Cell
	Walk(b, level, func(c pixel.Cell, _ bool) {
		if c.Level() < level {
			cells = append(cells, c.ChildrenAt(level)...)
			return
		}
		cells = append(cells, c)
	})
	return cells
}

// Covering returns a small covering of at most DefaultMaxCells cells. A cell
// covers itself.
func Covering(b Bound) []pixel.Cell {
	if b.IsEmpty() {
		return nil
	}
	if cb, ok := b.(*CellBound); ok {
		return []pixel.Cell{cb.Cell()}
	}
	rc := &s2.RegionCoverer{
		MinLevel: 0,
		MaxLevel: pixel.MaxLevel,
		LevelMod: 0,
		MaxCells: DefaultMaxCells,
	}
	union := rc.Covering(b.region())
	cells := make([]pixel.Cell, len(union))
	for i, id := range union {
		cells[i] = pixel.FromCellID(id)
	}
	return cells
}

// CoveringMaxPixels returns the finest adaptive covering with at most
// maxPixels cells. Six faces is the coarsest covering there is; when even
// that exceeds maxPixels the face level covering is returned.
func CoveringMaxPixels(b Bound, maxPixels int) []pixel.Cell {
	if b.IsEmpty() || maxPixels <= 0 {
		return nil
	}
	level := mathhelp.Clamp(pixel.LevelFromArea(b.Area()/float64(maxPixels))+1, 0, pixel.MaxLevel)
	for {
		cells := AdaptiveCovering(b, level)
		if len(cells) <= maxPixels || level == 0 {
			return cells
		}
		level--
	}
}

// CoveringTolerance returns the coarsest adaptive covering whose area differs
// from the area of b by at most fraction·area, or the MaxLevel covering if
// none does.
func CoveringTolerance(b Bound, fraction float64) []pixel.Cell {
	if b.IsEmpty() {
		return nil
	}
	area := b.Area()
	level := mathhelp.Clamp(pixel.LevelFromArea(area), 0, pixel.MaxLevel)
	for {
		cells := AdaptiveCovering(b, level)
		if math.Abs(CellsArea(cells)-area) <= fraction*area || level == pixel.MaxLevel {
			return cells
		}
		level++
	}
}

// CellsArea sums the exact areas of cells.
func CellsArea(cells []pixel.Cell) float64 {
	area := 0.0
	for _, c := range cells {
		area += c.ExactArea()
	}
	return area
}
