package common

import "math"

// Round returns v rounded half away from zero to the nearest integer.
func Round(v float64) int {
	return int(math.Round(v))
}
