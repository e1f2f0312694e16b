package mathhelp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPow2(t *testing.T) {
	tests := []struct {
		n    int
		want bool
	}{
		{n: -4, want: false},
		{n: 0, want: false},
		{n: 1, want: true},
		{n: 2, want: true},
		{n: 3, want: false},
		{n: 256, want: true},
		{n: 2048, want: true},
		{n: 2047, want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPow2(tt.n), "IsPow2(%d)", tt.n)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-3, 0, 30))
	assert.Equal(t, 30, Clamp(31, 0, 30))
	assert.Equal(t, 12, Clamp(12, 0, 30))
	assert.InDelta(t, 0.5, Clamp(0.5, 0.0, 1.0), 0)
}
