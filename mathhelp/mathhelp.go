package mathhelp

import (
	"golang.org/x/exp/constraints"
)

func IsPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func Bool2int(b bool) int {
	if b {
		return 1
	}
	return 0
}

func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
