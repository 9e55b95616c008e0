package dsp

import "github.com/RyanBlaney/sonido-sonar/algorithms/spectral"

// dctSampleRate only sizes the filterbank built alongside the basis, which
// is discarded.
const dctSampleRate = 22050

// DCTMatrix returns the first numCoeffs rows of the orthonormal DCT-II basis
// for inputs of length n.
func DCTMatrix(numCoeffs, n int) [][]float64 {
	m := spectral.NewMFCCWithParams(dctSampleRate, spectral.MFCCParams{
		NumCoefficients: numCoeffs,
		NumMelFilters:   n,
	})
	if err := m.Initialize(2 * n); err != nil {
		return nil
	}
	return m.GetDCTMatrix()
}

// ApplyDCT multiplies input by the basis.
func ApplyDCT(matrix [][]float64, input []float64) []float64 {
	out := make([]float64, len(matrix))
	for k, row := range matrix {
		var sum float64
		for i, v := range input {
			sum += row[i] * v
		}
		out[k] = sum
	}
	return out
}
