package mapslicehelp

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/exp/constraints"
)

// LastN returns the tail of length n, or nil when there are fewer elements.
func LastN[T any](elements []T, n int) []T {
	if n < 0 || len(elements) < n {
		return nil
	}
	return elements[len(elements)-n:]
}

// CompactSorted removes consecutive duplicates in place.
func CompactSorted[T comparable](s []T) []T {
	if len(s) < 2 {
		return s
	}
	w := 1
	for r := 1; r < len(s); r++ {
		if s[r] != s[w-1] {
			s[w] = s[r]
			w++
		}
	}
	return s[:w]
}

func OrderedMapKeys[K comparable, V any](m *orderedmap.OrderedMap[K, V]) []K {
	l := make([]K, m.Len())
	i := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		l[i] = p.Key
		i++
	}
	return l
}

// Increment adds delta to the value stored under k, inserting k at the end if it's new.
func Increment[K comparable, V constraints.Integer | constraints.Float](m *orderedmap.OrderedMap[K, V], k K, delta V) V {
	v, _ := m.Get(k)
	v += delta
	m.Set(k, v)
	return v
}

func SumVals[K comparable, V constraints.Integer | constraints.Float](m *orderedmap.OrderedMap[K, V]) V {
	var sum V
	for p := m.Oldest(); p != nil; p = p.Next() {
		sum += p.Value
	}
	return sum
}
