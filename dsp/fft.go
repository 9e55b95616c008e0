package dsp

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT computes the complex spectrum of a real signal.
func FFT(input []float64) []complex128 {
	if len(input) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(input)
}

// PowerSpectrum returns |X[k]|^2 for the non-negative frequency bins
// 0..len(frame)/2 of a real frame.
func PowerSpectrum(frame []float64) []float64 {
	spectrum := FFT(frame)
	bins := len(frame)/2 + 1
	power := make([]float64, bins)
	for k := 0; k < bins && k < len(spectrum); k++ {
		m := cmplx.Abs(spectrum[k])
		power[k] = m * m
	}
	return power
}
