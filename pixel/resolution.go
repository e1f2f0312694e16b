package pixel

import (
	"fmt"

	"github.com/pdok/skypix/mathhelp"
	"github.com/pdok/skypix/sphere"
)

const (
	// The equal-area scheme has 36 x 13 pixels at resolution 1.
	resolutionOnePixels = 36 * 13
	// DefaultResolution is the historic default maximum resolution.
	DefaultResolution = 2048
)

// ResolutionArea returns the pixel area in square degrees of the equal-area
// scheme at power-of-two resolution r (r x r pixels per resolution 1 pixel).
func ResolutionArea(r int) float64 {
	return sphere.SphereArea / float64(resolutionOnePixels) / float64(r) / float64(r)
}

// LevelFromResolution maps a power-of-two resolution of the equal-area scheme
// onto the first level whose cells are no larger than its pixels.
func LevelFromResolution(r int) (Level, error) {
	if !mathhelp.IsPow2(r) {
		return 0, fmt.Errorf("resolution should be a power of two, got %d", r)
	}
	return mathhelp.Clamp(LevelFromArea(ResolutionArea(r)), 0, MaxLevel), nil
}
