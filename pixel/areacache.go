package pixel

import (
	"github.com/golang/geo/s2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// exactAreaCacheSize bounds the number of cached cell areas. Pixelizing a
// region revisits the same boundary cells several times (walk, contained
// area, map area), so a modest cache removes most of the trigonometry.
const exactAreaCacheSize = 1 << 16

var exactAreas = newAreaCache(exactAreaCacheSize)

func newAreaCache(size int) *lru.Cache[s2.CellID, float64] {
	cache, err := lru.New[s2.CellID, float64](size)
	if err != nil {
		panic(err)
	}
	return cache
}
