package geomhelp

import (
	"math"
	"strings"
	"testing"

	"github.com/go-spatial/geom"
	"github.com/stretchr/testify/assert"
)

func TestShoelace(t *testing.T) {
	var tests = []struct {
		pts    [][2]float64
		area   float64
		signed float64
	}{
		// Rectangle, clockwise
		0: {pts: [][2]float64{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}}, area: 100, signed: -100},
		// Triangle, counter-clockwise
		1: {pts: [][2]float64{{0, 0}, {5, 10}, {0, 10}, {0, 0}}, area: 25, signed: 25},
		// Missing 'official' closing point
		2: {pts: [][2]float64{{0, 0}, {0, 10}, {10, 10}, {10, 0}}, area: 100, signed: -100},
		// Single point
		3: {pts: [][2]float64{{1234, 4321}}, area: 0, signed: 0},
		// No point
		4: {pts: nil, area: 0, signed: 0},
	}

	for k, test := range tests {
		assert.InDelta(t, test.area, math.Abs(SignedShoelace(test.pts)), 1e-12, "test: %d", k)
		assert.InDelta(t, test.signed, SignedShoelace(test.pts), 1e-12, "test: %d", k)
		assert.Equal(t, test.signed < 0, IsClockwise(test.pts), "test: %d", k)
	}
}

func TestUnwrapLongitudes(t *testing.T) {
	ring := UnwrapLongitudes([][2]float64{{359, 0}, {1, 0}, {1, 1}, {359, 1}})
	assert.Equal(t, [][2]float64{{359, 0}, {361, 0}, {361, 1}, {359, 1}}, ring)
	assert.False(t, IsClockwise([][2]float64{{359, 0}, {361, 0}, {361, 1}, {359, 1}}))
}

func TestWktMustEncode(t *testing.T) {
	polygon := geom.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}
	full := WktMustEncode(polygon, 0)
	assert.True(t, strings.HasPrefix(full, "POLYGON"))
	short := WktMustEncode(polygon, 12)
	assert.True(t, strings.HasSuffix(short, "..."))
	assert.LessOrEqual(t, len(short), 12)
}
