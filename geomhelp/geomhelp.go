package geomhelp

import (
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/muesli/reflow/truncate"
)

// SignedShoelace is the planar area of a ring, positive for counter-clockwise
// rings (x right, y up). https://en.wikipedia.org/wiki/Shoelace_formula
func SignedShoelace(pts [][2]float64) float64 {
	sum := 0.
	if len(pts) == 0 {
		return 0.
	}

	p0 := pts[len(pts)-1]
	for _, p1 := range pts {
		sum += p0[0]*p1[1] - p1[0]*p0[1]
		p0 = p1
	}
	return sum / 2
}

// IsClockwise checks the planar orientation of a ring. For rings in (lng, lat)
// degrees this is only an approximation of the spherical orientation, good
// enough for rings smaller than a hemisphere away from the poles.
func IsClockwise(pts [][2]float64) bool {
	return SignedShoelace(pts) < 0
}

// UnwrapLongitudes shifts longitudes by multiples of 360 so that consecutive
// points never jump more than 180 degrees. The ring is modified in place.
func UnwrapLongitudes(pts [][2]float64) [][2]float64 {
	for i := 1; i < len(pts); i++ {
		for pts[i][0]-pts[i-1][0] > 180 {
			pts[i][0] -= 360
		}
		for pts[i-1][0]-pts[i][0] > 180 {
			pts[i][0] += 360
		}
	}
	return pts
}

func WktMustEncode(g geom.Geometry, maxLen uint) string {
	if maxLen == 0 {
		return wkt.MustEncode(g)
	}
	return truncate.StringWithTail(wkt.MustEncode(g), maxLen, "...")
}
