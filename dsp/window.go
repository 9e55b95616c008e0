package dsp

import "github.com/RyanBlaney/sonido-sonar/algorithms/windowing"

// HannWindow returns a periodic Hann window of length size, the variant used
// for spectral analysis (w[0] = 0, peak at size/2, no repeated endpoint).
func HannWindow(size int) []float64 {
	if size == 1 {
		return []float64{1}
	}
	return windowing.NewHann(size, false).GetCoefficients()
}
