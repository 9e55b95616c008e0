package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// MFCCConfig holds the analysis parameters. DefaultMFCCConfig matches the
// settings the feature table and the classifier share.
type MFCCConfig struct {
	SampleRate      int     `json:"sample_rate"`
	NFFT            int     `json:"n_fft"`
	HopLength       int     `json:"hop_length"`
	NumMels         int     `json:"n_mels"`
	NumCoefficients int     `json:"n_mfcc"`
	FMin            float64 `json:"fmin"`
	FMax            float64 `json:"fmax"`
	HTK             bool    `json:"htk"`
	AMin            float64 `json:"amin"`
	TopDB           float64 `json:"top_db"`
}

func DefaultMFCCConfig(sampleRate, numCoefficients int) MFCCConfig {
	return MFCCConfig{
		SampleRate:      sampleRate,
		NFFT:            2048,
		HopLength:       512,
		NumMels:         128,
		NumCoefficients: numCoefficients,
		FMin:            0,
		FMax:            float64(sampleRate) / 2,
		AMin:            1e-10,
		TopDB:           80,
	}
}

// MFCC computes mel-frequency cepstral coefficients. It is safe for
// concurrent use once built.
type MFCC struct {
	cfg     MFCCConfig
	window  []float64
	filters []MelFilter
	dct     [][]float64
}

func NewMFCC(cfg MFCCConfig) (*MFCC, error) {
	switch {
	case cfg.SampleRate <= 0:
		return nil, fmt.Errorf("invalid sample rate %d", cfg.SampleRate)
	case cfg.NFFT <= 0 || cfg.HopLength <= 0:
		return nil, fmt.Errorf("invalid frame parameters n_fft=%d hop=%d", cfg.NFFT, cfg.HopLength)
	case cfg.NumMels <= 0:
		return nil, fmt.Errorf("invalid mel band count %d", cfg.NumMels)
	case cfg.NumCoefficients <= 0 || cfg.NumCoefficients > cfg.NumMels:
		return nil, fmt.Errorf("coefficient count %d must be in 1..%d", cfg.NumCoefficients, cfg.NumMels)
	}
	if cfg.AMin <= 0 {
		cfg.AMin = 1e-10
	}

	return &MFCC{
		cfg:    cfg,
		window: HannWindow(cfg.NFFT),
		filters: MelFilterBank(MelConfig{
			SampleRate: cfg.SampleRate,
			NFFT:       cfg.NFFT,
			NumMels:    cfg.NumMels,
			FMin:       cfg.FMin,
			FMax:       cfg.FMax,
			HTK:        cfg.HTK,
			Slaney:     true,
		}),
		dct: DCTMatrix(cfg.NumCoefficients, cfg.NumMels),
	}, nil
}

func (m *MFCC) Config() MFCCConfig { return m.cfg }

// MelSpectrogram returns the mel-band power per frame.
func (m *MFCC) MelSpectrogram(samples []float64) ([][]float64, error) {
	power, err := PowerSpectrogram(samples, m.window, m.cfg.HopLength)
	if err != nil {
		return nil, err
	}

	mel := make([][]float64, len(power))
	for t, spectrum := range power {
		bands := make([]float64, len(m.filters))
		for b, f := range m.filters {
			bands[b] = f.Apply(spectrum)
		}
		mel[t] = bands
	}
	return mel, nil
}

// Compute returns the coefficient matrix indexed [frame][coefficient].
func (m *MFCC) Compute(samples []float64) ([][]float64, error) {
	mel, err := m.MelSpectrogram(samples)
	if err != nil {
		return nil, err
	}
	PowerToDB(mel, 1.0, m.cfg.AMin, m.cfg.TopDB)

	out := make([][]float64, len(mel))
	for t, bands := range mel {
		out[t] = ApplyDCT(m.dct, bands)
	}
	return out, nil
}

// MeanCoefficients averages every coefficient over time.
func (m *MFCC) MeanCoefficients(samples []float64) ([]float64, error) {
	frames, err := m.Compute(samples)
	if err != nil {
		return nil, err
	}
	return MeanOverFrames(frames), nil
}

// MeanOverFrames returns the column means of a [frame][value] matrix.
func MeanOverFrames(frames [][]float64) []float64 {
	if len(frames) == 0 {
		return nil
	}
	mean := make([]float64, len(frames[0]))
	for _, frame := range frames {
		floats.Add(mean, frame)
	}
	floats.Scale(1/float64(len(frames)), mean)
	return mean
}
