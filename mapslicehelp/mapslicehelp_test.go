package mapslicehelp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func TestLastN(t *testing.T) {
	s := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{2, 3, 4, 5}, LastN(s, 4))
	assert.Equal(t, []int{}, LastN(s, 0))
	assert.Nil(t, LastN(s, 6))
	assert.Nil(t, LastN(s, -1))
}

func TestCompactSorted(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want []int
	}{
		{name: "nil", in: nil, want: nil},
		{name: "single", in: []int{1}, want: []int{1}},
		{name: "dupes", in: []int{1, 1, 2, 3, 3, 3, 4}, want: []int{1, 2, 3, 4}},
		{name: "all same", in: []int{7, 7, 7}, want: []int{7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompactSorted(tt.in))
		})
	}
}

func TestOrderedMapHelpers(t *testing.T) {
	m := orderedmap.New[string, int]()
	Increment(m, "circle", 2)
	Increment(m, "polygon", 1)
	Increment(m, "circle", 3)
	assert.Equal(t, []string{"circle", "polygon"}, OrderedMapKeys(m))
	v, _ := m.Get("circle")
	assert.Equal(t, 5, v)
	assert.Equal(t, 6, SumVals(m))
}
