package dsp

import "math"

const (
	resampleZeroCrossings = 16
	resampleRolloff       = 0.945
)

// Resample converts samples from one rate to another with a Hann-windowed
// sinc interpolator. The output length is ceil(len * to / from).
func Resample(samples []float64, from, to int) []float64 {
	if from == to || len(samples) == 0 || from <= 0 || to <= 0 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(to) / float64(from)
	n := int(math.Ceil(float64(len(samples)) * ratio))
	out := make([]float64, n)

	// Cutoff relative to the input Nyquist; downsampling lowers it.
	cutoff := resampleRolloff * math.Min(1, ratio)
	halfWidth := float64(resampleZeroCrossings) / cutoff

	for j := range out {
		center := float64(j) / ratio
		lo := int(math.Ceil(center - halfWidth))
		hi := int(math.Floor(center + halfWidth))
		if lo < 0 {
			lo = 0
		}
		if hi > len(samples)-1 {
			hi = len(samples) - 1
		}

		var sum float64
		for i := lo; i <= hi; i++ {
			d := center - float64(i)
			sum += samples[i] * cutoff * sinc(cutoff*d) * hannTap(d/halfWidth)
		}
		out[j] = sum
	}
	return out
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func hannTap(u float64) float64 {
	if u <= -1 || u >= 1 {
		return 0
	}
	return 0.5 * (1 + math.Cos(math.Pi*u))
}
