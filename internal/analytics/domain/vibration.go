package analytics

import "math"

// VibrationRMS collapses a tri-axial acceleration reading into a single
// magnitude: the square root of the mean of the squared axis values.
// It is zero only when all three axes are exactly zero.
func VibrationRMS(x, y, z float64) float64 {
	return math.Sqrt((x*x + y*y + z*z) / 3)
}
