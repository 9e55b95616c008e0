package genre

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// FeatureScaler standardizes features with a z-score per dimension. The
// parameters come from the artifact: they are whatever the training side
// fitted.
type FeatureScaler struct {
	Mean   []float64 `json:"mean"`
	Stddev []float64 `json:"stddev"`
}

// NewFeatureScalerFromSamples fits mean and population stddev per column.
func NewFeatureScalerFromSamples(samples []FeatureVector) (*FeatureScaler, error) {
	if len(samples) == 0 {
		return nil, errors.New("no samples provided")
	}
	featureCount := len(samples[0])
	if featureCount == 0 {
		return nil, errors.New("samples have no features")
	}

	scaler := &FeatureScaler{
		Mean:   make([]float64, featureCount),
		Stddev: make([]float64, featureCount),
	}
	column := make([]float64, len(samples))
	for i := 0; i < featureCount; i++ {
		for j, s := range samples {
			if len(s) != featureCount {
				return nil, fmt.Errorf("sample %d has %d features, expected %d", j, len(s), featureCount)
			}
			column[j] = s[i]
		}
		scaler.Mean[i], scaler.Stddev[i] = stat.PopMeanStdDev(column, nil)
	}
	scaler.guardZeroVariance()
	return scaler, nil
}

func (fs *FeatureScaler) validate(featureCount int) error {
	if len(fs.Mean) != featureCount || len(fs.Stddev) != featureCount {
		return fmt.Errorf("scaler has %d/%d parameters, expected %d", len(fs.Mean), len(fs.Stddev), featureCount)
	}
	fs.guardZeroVariance()
	return nil
}

// Constant features keep their centred value instead of dividing by zero.
func (fs *FeatureScaler) guardZeroVariance() {
	for i, s := range fs.Stddev {
		if s < 1e-10 {
			fs.Stddev[i] = 1.0
		}
	}
}

// Transform returns a standardized copy of features.
func (fs *FeatureScaler) Transform(features []float64) []float64 {
	scaled := make([]float64, len(features))
	for i, v := range features {
		if i >= len(fs.Mean) {
			scaled[i] = v
			continue
		}
		scaled[i] = (v - fs.Mean[i]) / fs.Stddev[i]
	}
	return scaled
}
