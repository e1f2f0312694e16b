package pixel

import (
	"github.com/go-spatial/geom"
	"github.com/golang/geo/s2"
)

// Polygon returns the cell as a ring of (lng, lat) degrees, counter-clockwise.
// Longitudes are unwrapped relative to the first vertex so that cells on the
// antimeridian don't span the whole map; the ring is not closed.
func (c Cell) Polygon() geom.Polygon {
	if !c.IsValid() {
		return nil
	}
	cell := c.S2Cell()
	ring := make([][2]float64, 4)
	for k := range ring {
		ll := s2.LatLngFromPoint(cell.Vertex(k))
		ring[k] = [2]float64{ll.Lng.Degrees(), ll.Lat.Degrees()}
	}
	for k := 1; k < len(ring); k++ {
		for ring[k][0]-ring[0][0] > 180 {
			ring[k][0] -= 360
		}
		for ring[0][0]-ring[k][0] > 180 {
			ring[k][0] += 360
		}
	}
	return geom.Polygon{ring}
}
