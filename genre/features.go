package genre

import (
	"context"
	"fmt"

	"genre-classifier/dsp"
)

// Extractor turns audio into feature vectors. The same extractor settings
// must be used for the feature table and for live classification.
type Extractor struct {
	mfcc *dsp.MFCC
	load LoadOptions
}

func NewExtractor(load LoadOptions, numCoefficients int) (*Extractor, error) {
	load = load.withDefaults()
	if numCoefficients <= 0 {
		numCoefficients = FeatureCount
	}
	mfcc, err := dsp.NewMFCC(dsp.DefaultMFCCConfig(load.SampleRate, numCoefficients))
	if err != nil {
		return nil, fmt.Errorf("configure mfcc: %w", err)
	}
	return &Extractor{mfcc: mfcc, load: load}, nil
}

// Options returns the decoding settings.
func (e *Extractor) Options() LoadOptions { return e.load }

// ExtractFile loads path and extracts its feature vector.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (FeatureVector, error) {
	clip, err := LoadClip(ctx, path, e.load)
	if err != nil {
		return nil, err
	}
	return e.ExtractClip(clip)
}

// ExtractClip extracts features from an already decoded clip.
func (e *Extractor) ExtractClip(clip Clip) (FeatureVector, error) {
	if len(clip.Samples) == 0 {
		return nil, ErrEmptyAudio
	}
	samples := clip.Samples
	if clip.SampleRate != e.load.SampleRate {
		samples = dsp.Resample(samples, clip.SampleRate, e.load.SampleRate)
	}
	coeffs, err := e.mfcc.MeanCoefficients(samples)
	if err != nil {
		return nil, fmt.Errorf("extract mfcc: %w", err)
	}
	return FeatureVector(coeffs), nil
}
