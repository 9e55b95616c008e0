package dsp

import "fmt"

// FrameCount is the number of centred frames an input of n samples yields.
func FrameCount(n, hop int) int {
	return 1 + n/hop
}

// PowerSpectrogram computes a centred short-time power spectrogram. The
// signal is zero padded by len(window)/2 on both sides, so frame t is centred
// on sample t*hop. The result is indexed [frame][bin].
func PowerSpectrogram(samples, window []float64, hop int) ([][]float64, error) {
	nfft := len(window)
	if nfft == 0 || hop <= 0 {
		return nil, fmt.Errorf("invalid stft parameters: n_fft=%d hop=%d", nfft, hop)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	pad := nfft / 2
	padded := make([]float64, len(samples)+2*pad)
	copy(padded[pad:], samples)

	frames := FrameCount(len(samples), hop)
	out := make([][]float64, frames)
	frame := make([]float64, nfft)
	for t := 0; t < frames; t++ {
		start := t * hop
		for i := 0; i < nfft; i++ {
			frame[i] = padded[start+i] * window[i]
		}
		out[t] = PowerSpectrum(frame)
	}
	return out, nil
}
