package genre

import (
	"math"
	"testing"
)

func TestFeatureScalerFromSamples(t *testing.T) {
	t.Parallel()

	samples := []FeatureVector{
		{1, 10, 5},
		{3, 10, 5},
		{5, 10, 5},
	}
	scaler, err := NewFeatureScalerFromSamples(samples)
	if err != nil {
		t.Fatalf("NewFeatureScalerFromSamples returned error: %v", err)
	}
	if scaler.Mean[0] != 3 || scaler.Mean[1] != 10 {
		t.Fatalf("unexpected means %v", scaler.Mean)
	}
	if math.Abs(scaler.Stddev[0]-math.Sqrt(8.0/3)) > 1e-12 {
		t.Fatalf("expected population stddev, got %v", scaler.Stddev[0])
	}
	// Constant columns divide by one.
	if scaler.Stddev[1] != 1 || scaler.Stddev[2] != 1 {
		t.Fatalf("zero variance not guarded: %v", scaler.Stddev)
	}

	scaled := scaler.Transform([]float64{3, 12, 5})
	if scaled[0] != 0 || scaled[1] != 2 || scaled[2] != 0 {
		t.Fatalf("unexpected transform %v", scaled)
	}
}

func TestFeatureScalerRejectsRaggedSamples(t *testing.T) {
	t.Parallel()

	if _, err := NewFeatureScalerFromSamples(nil); err == nil {
		t.Fatal("expected error for no samples")
	}
	if _, err := NewFeatureScalerFromSamples([]FeatureVector{{1, 2}, {1}}); err == nil {
		t.Fatal("expected error for inconsistent dimensions")
	}
}
