package dsp

import (
	"math"

	"github.com/RyanBlaney/sonido-sonar/algorithms/spectral"
)

const (
	slaneyFSp       = 200.0 / 3
	slaneyMinLogHz  = 1000.0
	slaneyMinLogMel = slaneyMinLogHz / slaneyFSp
)

var (
	slaneyLogStep = math.Log(6.4) / 27.0
	htkScale      = spectral.NewMelScale()
)

// HzToMel converts a frequency to the mel scale. The Slaney scale is linear
// below 1 kHz and logarithmic above; the HTK scale is 2595*log10(1+f/700).
func HzToMel(hz float64, htk bool) float64 {
	if htk {
		return htkScale.HzToMel(hz)
	}
	if hz >= slaneyMinLogHz {
		return slaneyMinLogMel + math.Log(hz/slaneyMinLogHz)/slaneyLogStep
	}
	return hz / slaneyFSp
}

// MelToHz is the inverse of HzToMel.
func MelToHz(mel float64, htk bool) float64 {
	if htk {
		return htkScale.MelToHz(mel)
	}
	if mel >= slaneyMinLogMel {
		return slaneyMinLogHz * math.Exp(slaneyLogStep*(mel-slaneyMinLogMel))
	}
	return slaneyFSp * mel
}

// MelFilter is one triangular filter stored sparsely: Weights[i] applies to
// FFT bin Start+i.
type MelFilter struct {
	Start   int
	Weights []float64
}

// Apply projects a power spectrum onto the filter.
func (f MelFilter) Apply(power []float64) float64 {
	var sum float64
	for i, w := range f.Weights {
		sum += w * power[f.Start+i]
	}
	return sum
}

// MelConfig parameterises the filterbank.
type MelConfig struct {
	SampleRate int
	NFFT       int
	NumMels    int
	FMin       float64
	FMax       float64
	HTK        bool
	// Slaney scales each filter by 2/(f_high-f_low) so that filters
	// have roughly constant energy.
	Slaney bool
}

// MelFilterBank builds NumMels triangular filters over the NFFT/2+1 bins.
// Edges are equally spaced on the mel scale between FMin and FMax and the
// triangles are evaluated at the bin centre frequencies.
func MelFilterBank(cfg MelConfig) []MelFilter {
	fmax := cfg.FMax
	if fmax <= 0 {
		fmax = float64(cfg.SampleRate) / 2
	}
	bins := cfg.NFFT/2 + 1

	fftFreqs := make([]float64, bins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(cfg.SampleRate) / float64(cfg.NFFT)
	}

	minMel := HzToMel(cfg.FMin, cfg.HTK)
	maxMel := HzToMel(fmax, cfg.HTK)
	edges := make([]float64, cfg.NumMels+2)
	for i := range edges {
		mel := minMel + (maxMel-minMel)*float64(i)/float64(cfg.NumMels+1)
		edges[i] = MelToHz(mel, cfg.HTK)
	}

	filters := make([]MelFilter, cfg.NumMels)
	dense := make([]float64, bins)
	for m := 0; m < cfg.NumMels; m++ {
		lowerWidth := edges[m+1] - edges[m]
		upperWidth := edges[m+2] - edges[m+1]
		scale := 1.0
		if cfg.Slaney {
			scale = 2.0 / (edges[m+2] - edges[m])
		}

		first, last := -1, -1
		for k, f := range fftFreqs {
			lower := (f - edges[m]) / lowerWidth
			upper := (edges[m+2] - f) / upperWidth
			w := math.Max(0, math.Min(lower, upper))
			dense[k] = w * scale
			if w > 0 {
				if first < 0 {
					first = k
				}
				last = k
			}
		}

		if first < 0 {
			// Filter narrower than a bin: contributes nothing.
			filters[m] = MelFilter{}
			continue
		}
		weights := make([]float64, last-first+1)
		copy(weights, dense[first:last+1])
		filters[m] = MelFilter{Start: first, Weights: weights}
	}
	return filters
}
