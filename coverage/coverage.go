// Package coverage implements the coverage map: a weighted set of disjoint
// cells, kept sorted in pixel order.
//
// Every operation leaves a map in its canonical form: no two cells overlap,
// and no four siblings with the same weight are stored where their parent
// could be. Two maps describing the same weighted footprint therefore have
// identical entries, whatever order they were built in.
package coverage

import (
	"fmt"
	"slices"
	"sort"

	"github.com/golang/geo/s2"
	"github.com/pdok/skypix/bound"
	"github.com/pdok/skypix/mapslicehelp"
	"github.com/pdok/skypix/pixel"
)

// MinContainedFraction is the part of a boundary cell that must lie inside a
// bound for the cell to be part of its pixelization.
const MinContainedFraction = 0.5

type Entry struct {
	Cell   pixel.Cell
	Weight float64
}

func (e Entry) String() string {
	return fmt.Sprintf("%s:%g", e.Cell, e.Weight)
}

type Map struct {
	entries      []Entry
	area         float64
	weightedArea float64
}

func New() *Map {
	return &Map{}
}

// FromEntries creates a map from entries in any order. Entries must be
// valid cells and must not overlap.
func FromEntries(entries []Entry) (*Map, error) {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int {
		return pixel.Compare(a.Cell, b.Cell)
	})
	for i, e := range sorted {
		if !e.Cell.IsValid() {
			return nil, fmt.Errorf("invalid cell %d in entries", e.Cell.ID())
		}
		if i > 0 && !before(sorted[i-1].Cell, e.Cell) {
			return nil, fmt.Errorf("cells %s and %s overlap", sorted[i-1].Cell, e.Cell)
		}
	}
	m := &Map{entries: coalesce(sorted)}
	m.recount()
	return m, nil
}

// FromBound pixelizes b with cells no finer than maxLevel. Cells inside b are
// taken as they are. A maxLevel cell on the boundary is taken when at least
// MinContainedFraction of it lies inside b. A cell bound finer than maxLevel
// becomes its ancestor at maxLevel.
func FromBound(b bound.Bound, weight float64, maxLevel pixel.Level) *Map {
	m := New()
	if b.IsEmpty() {
		return m
	}
	maxLevel = min(max(maxLevel, 0), pixel.MaxLevel)
	if cb, ok := b.(*bound.CellBound); ok {
		c := cb.Cell()
		if c.Level() > maxLevel {
			c = c.ParentAt(maxLevel)
		}
		m.entries = []Entry{{Cell: c, Weight: weight}}
		m.recount()
		return m
	}
	bound.Walk(b, maxLevel, func(c pixel.Cell, inside bool) {
		if !inside && b.ContainedArea(c) < MinContainedFraction*c.ExactArea() {
			return
		}
		m.entries = append(m.entries, Entry{Cell: c, Weight: weight})
	})
	m.entries = coalesce(m.entries)
	m.recount()
	return m
}

func (m *Map) recount() {
	m.area, m.weightedArea = 0, 0
	for _, e := range m.entries {
		a := e.Cell.ExactArea()
		m.area += a
		m.weightedArea += e.Weight * a
	}
}

// Size is the number of cells.
func (m *Map) Size() int {
	return len(m.entries)
}

func (m *Map) IsEmpty() bool {
	return len(m.entries) == 0
}

// Area is the footprint in square degrees, regardless of weights.
func (m *Map) Area() float64 {
	return m.area
}

// WeightedArea is the sum of weight times area over all cells.
func (m *Map) WeightedArea() float64 {
	return m.weightedArea
}

// Entries returns a copy of the entries in pixel order.
func (m *Map) Entries() []Entry {
	return slices.Clone(m.entries)
}

func (m *Map) Cells() []pixel.Cell {
	cells := make([]pixel.Cell, len(m.entries))
	for i, e := range m.entries {
		cells[i] = e.Cell
	}
	return cells
}

func (m *Map) Clone() *Map {
	return &Map{
		entries:      slices.Clone(m.entries),
		area:         m.area,
		weightedArea: m.weightedArea,
	}
}

func (m *Map) Clear() {
	*m = Map{}
}

// MinLevel is the coarsest level in the map, -1 when empty.
func (m *Map) MinLevel() pixel.Level {
	if m.IsEmpty() {
		return -1
	}
	level := pixel.MaxLevel
	for _, e := range m.entries {
		level = min(level, e.Cell.Level())
	}
	return level
}

// MaxLevel is the finest level in the map, -1 when empty.
func (m *Map) MaxLevel() pixel.Level {
	level := -1
	for _, e := range m.entries {
		level = max(level, e.Cell.Level())
	}
	return level
}

// search returns the index of the first entry not entirely before c.
func (m *Map) search(c pixel.Cell) int {
	lo := c.RangeMin().ID()
	return sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].Cell.RangeMax().ID() >= lo
	})
}

// FindWeight returns the weight of the cell containing p.
func (m *Map) FindWeight(p s2.Point) (float64, bool) {
	leaf := pixel.FromPoint(p)
	i := m.search(leaf)
	if i < len(m.entries) && m.entries[i].Cell.ContainsCell(leaf) {
		return m.entries[i].Weight, true
	}
	return 0, false
}

func (m *Map) Contains(p s2.Point) bool {
	_, ok := m.FindWeight(p)
	return ok
}

// ContainsCell reports whether c is covered entirely, by one coarser cell or
// by finer cells tiling it.
func (m *Map) ContainsCell(c pixel.Cell) bool {
	if !c.IsValid() {
		return false
	}
	i := m.search(c)
	if i < len(m.entries) && m.entries[i].Cell.ContainsCell(c) {
		return true
	}
	// leaf ids are odd, consecutive leaves are two apart
	next := c.RangeMin().ID()
	for ; i < len(m.entries) && c.ContainsCell(m.entries[i].Cell); i++ {
		if m.entries[i].Cell.RangeMin().ID() != next {
			return false
		}
		next = m.entries[i].Cell.RangeMax().ID() + 2
	}
	return next == c.RangeMax().ID()+2
}

// IntersectsCell reports whether any part of c is covered.
func (m *Map) IntersectsCell(c pixel.Cell) bool {
	if !c.IsValid() {
		return false
	}
	i := m.search(c)
	return i < len(m.entries) && m.entries[i].Cell.RangeMin().ID() <= c.RangeMax().ID()
}

// Ingest adds the parts of o not yet covered by m. Where both maps cover the
// same area m keeps its own weights, so for disjoint maps the order of
// ingestion doesn't matter.
func (m *Map) Ingest(o *Map) {
	entries, grown := merge(m.entries, o.entries, func(mine, _ Entry) Entry {
		return mine
	})
	m.entries = coalesce(entries)
	m.grow(grown)
}

// Add sums the weights of m and o. Where the maps overlap at different
// levels the coarser cell is split, each part keeping the full weight.
func (m *Map) Add(o *Map) {
	entries, grown := merge(m.entries, o.entries, func(mine, theirs Entry) Entry {
		return Entry{Cell: mine.Cell, Weight: mine.Weight + theirs.Weight}
	})
	m.entries = coalesce(entries)
	m.grow(grown)
}

func (m *Map) grow(d totals) {
	m.area += d.area
	m.weightedArea += d.weightedArea
}

// before reports whether a ends before b starts.
func before(a, b pixel.Cell) bool {
	return a.RangeMax().ID() < b.RangeMin().ID()
}

// cursor walks a sorted entry list. A cell that must be split is replaced by
// its children on the pending stack, which always precede the rest of the list.
type cursor struct {
	entries []Entry
	pending []Entry
}

func (c *cursor) peek() (Entry, bool) {
	if n := len(c.pending); n > 0 {
		return c.pending[n-1], true
	}
	if len(c.entries) > 0 {
		return c.entries[0], true
	}
	return Entry{}, false
}

func (c *cursor) pop() {
	if n := len(c.pending); n > 0 {
		c.pending = c.pending[:n-1]
		return
	}
	c.entries = c.entries[1:]
}

func (c *cursor) split() {
	e, _ := c.peek()
	c.pop()
	children := e.Cell.Children()
	for k := len(children) - 1; k >= 0; k-- {
		c.pending = append(c.pending, Entry{Cell: children[k], Weight: e.Weight})
	}
}

// totals are the area and weighted area a merge adds to its first list.
type totals struct {
	area         float64
	weightedArea float64
}

// merge combines two sorted disjoint lists. Cells in one list only are
// copied; equal cells are combined; a cell overlapping finer cells of the
// other list is split until the two meet at equal cells. Only cells taken
// from b or combined are measured, splitting and coalescing keep the area.
func merge(a, b []Entry, combine func(a, b Entry) Entry) ([]Entry, totals) {
	ca, cb := &cursor{entries: a}, &cursor{entries: b}
	out := make([]Entry, 0, len(a)+len(b))
	var grown totals
	for {
		x, okx := ca.peek()
		y, oky := cb.peek()
		switch {
		case !okx && !oky:
			return out, grown
		case !oky || (okx && before(x.Cell, y.Cell)):
			out = append(out, x)
			ca.pop()
		case !okx || before(y.Cell, x.Cell):
			area := y.Cell.ExactArea()
			grown.area += area
			grown.weightedArea += y.Weight * area
			out = append(out, y)
			cb.pop()
		case x.Cell == y.Cell:
			e := combine(x, y)
			if e.Weight != x.Weight {
				grown.weightedArea += (e.Weight - x.Weight) * e.Cell.ExactArea()
			}
			out = append(out, e)
			ca.pop()
			cb.pop()
		case x.Cell.Level() < y.Cell.Level():
			ca.split()
		default:
			cb.split()
		}
	}
}

// coalesce replaces complete groups of four equally weighted siblings by
// their parent, repeatedly, in place.
func coalesce(entries []Entry) []Entry {
	out := entries[:0]
	for _, e := range entries {
		out = append(out, e)
		for {
			last := mapslicehelp.LastN(out, 4)
			if last == nil || !mergeable(last) {
				break
			}
			out = append(out[:len(out)-4], Entry{Cell: last[0].Cell.Parent(), Weight: last[0].Weight})
		}
	}
	return out
}

func mergeable(group []Entry) bool {
	for _, e := range group[1:] {
		if e.Weight != group[0].Weight {
			return false
		}
	}
	return pixel.IsSiblingGroup([]pixel.Cell{group[0].Cell, group[1].Cell, group[2].Cell, group[3].Cell})
}
