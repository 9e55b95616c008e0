package genre

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

var testClasses = []string{"blues", "classical", "metal"}

func TestKNNPredictPrefersMajorityLabel(t *testing.T) {
	t.Parallel()

	model := newTestKNN(t, 3, WeightingUniform, []Prototype{
		syntheticPrototype("blues", map[int]float64{0: 1.0}),
		syntheticPrototype("blues", map[int]float64{0: 0.8, 1: 0.2}),
		syntheticPrototype("metal", map[int]float64{8: 1.0}),
	})

	label, err := model.Predict(featureVector(map[int]float64{0: 1.0}))
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if label != "blues" {
		t.Fatalf("expected blues, got %s", label)
	}

	probs, err := model.PredictProba(featureVector(map[int]float64{0: 1.0}))
	if err != nil {
		t.Fatalf("PredictProba returned error: %v", err)
	}
	want := []float64{2.0 / 3, 0, 1.0 / 3}
	for i := range want {
		if math.Abs(probs[i]-want[i]) > 1e-12 {
			t.Fatalf("class %s: expected %.3f, got %.3f", testClasses[i], want[i], probs[i])
		}
	}
}

func TestKNNDistanceWeighting(t *testing.T) {
	t.Parallel()

	model := newTestKNN(t, 3, WeightingDistance, []Prototype{
		syntheticPrototype("blues", map[int]float64{0: 1.0}),
		syntheticPrototype("metal", map[int]float64{0: 3.0}),
		syntheticPrototype("metal", map[int]float64{0: 3.0, 1: 0.1}),
	})

	label, err := model.Predict(featureVector(map[int]float64{0: 1.1}))
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if label != "blues" {
		t.Fatalf("closest neighbour should outweigh two distant ones, got %s", label)
	}

	// An exact match takes all the weight.
	probs, _ := model.PredictProba(featureVector(map[int]float64{0: 1.0}))
	if probs[0] != 1 {
		t.Fatalf("expected probability 1 for exact match, got %v", probs)
	}
}

func TestProbabilitiesCoverEveryClass(t *testing.T) {
	t.Parallel()

	models := map[string]*Model{
		"knn": newTestKNN(t, 2, WeightingUniform, []Prototype{
			syntheticPrototype("blues", map[int]float64{0: 1.0}),
			syntheticPrototype("classical", map[int]float64{1: 1.0}),
			syntheticPrototype("metal", map[int]float64{2: 1.0}),
		}),
		"softmax": newTestSoftmax(t),
	}

	inputs := []FeatureVector{
		featureVector(map[int]float64{0: 5}),
		featureVector(map[int]float64{1: -3, 2: 2}),
		featureVector(nil),
	}

	for name, model := range models {
		for _, in := range inputs {
			probs, err := model.PredictProba(in)
			if err != nil {
				t.Fatalf("%s: PredictProba: %v", name, err)
			}
			if len(probs) != len(model.Classes()) {
				t.Fatalf("%s: expected %d probabilities, got %d", name, len(model.Classes()), len(probs))
			}
			var sum float64
			for _, p := range probs {
				if p < 0 || p > 1 {
					t.Fatalf("%s: probability out of range: %v", name, probs)
				}
				sum += p
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Fatalf("%s: probabilities sum to %f", name, sum)
			}

			label, err := model.Predict(in)
			if err != nil {
				t.Fatalf("%s: Predict: %v", name, err)
			}
			found := false
			for _, c := range model.Classes() {
				found = found || c == label
			}
			if !found {
				t.Fatalf("%s: predicted %q outside %v", name, label, model.Classes())
			}
		}
	}
}

func TestSoftmaxFollowsLogits(t *testing.T) {
	t.Parallel()

	model := newTestSoftmax(t)
	label, err := model.Predict(featureVector(map[int]float64{2: 4}))
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if label != "metal" {
		t.Fatalf("expected metal, got %s", label)
	}
}

func TestBinarySoftmaxUsesLogistic(t *testing.T) {
	t.Parallel()

	coef := make([]float64, FeatureCount)
	coef[0] = 1
	model, err := NewModel(Artifact{
		Kind:         KindSoftmax,
		Classes:      []string{"jazz", "rock"},
		Coefficients: [][]float64{coef},
		Intercepts:   []float64{0},
	})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	probs, err := model.PredictProba(featureVector(nil))
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	if probs[0] != 0.5 || probs[1] != 0.5 {
		t.Fatalf("expected even split at z=0, got %v", probs)
	}
}

func TestScalerAppliedBeforeDistance(t *testing.T) {
	t.Parallel()

	mean := make([]float64, FeatureCount)
	stddev := make([]float64, FeatureCount)
	for i := range stddev {
		stddev[i] = 1
	}
	// Dimension 0 varies on a scale a thousand times larger than dimension 1.
	stddev[0] = 1000

	model, err := NewModel(Artifact{
		Kind:    KindKNN,
		Classes: testClasses,
		K:       1,
		Scaler:  &FeatureScaler{Mean: mean, Stddev: stddev},
		Prototypes: []Prototype{
			syntheticPrototype("blues", map[int]float64{0: 500, 1: 0}),
			syntheticPrototype("metal", map[int]float64{0: 0, 1: 3}),
		},
	})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	label, _ := model.Predict(featureVector(map[int]float64{0: 0, 1: 0}))
	if label != "blues" {
		t.Fatalf("expected scaled distance to favour blues, got %s", label)
	}
}

func TestNewModelValidation(t *testing.T) {
	t.Parallel()

	cases := map[string]Artifact{
		"no classes":      {Kind: KindKNN},
		"duplicate class": {Kind: KindKNN, Classes: []string{"a", "a"}},
		"unknown kind":    {Kind: "forest", Classes: testClasses},
		"label outside classes": {Kind: KindKNN, Classes: testClasses, Prototypes: []Prototype{
			syntheticPrototype("polka", nil),
		}},
		"short prototype": {Kind: KindKNN, Classes: testClasses, Prototypes: []Prototype{
			{Label: "blues", Features: []float64{1, 2}},
		}},
		"coefficient rows": {Kind: KindSoftmax, Classes: testClasses, Coefficients: [][]float64{make([]float64, FeatureCount)}, Intercepts: []float64{0}},
		"bad weighting": {Kind: KindKNN, Classes: testClasses, Weighting: "gaussian", Prototypes: []Prototype{
			syntheticPrototype("blues", nil),
		}},
	}

	for name, artifact := range cases {
		if _, err := NewModel(artifact); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestPredictRejectsWrongDimension(t *testing.T) {
	t.Parallel()

	model := newTestSoftmax(t)
	if _, err := model.Predict(FeatureVector{1, 2, 3}); err == nil {
		t.Fatalf("expected dimension error")
	}
	bad := featureVector(nil)
	bad[3] = math.NaN()
	if _, err := model.PredictProba(bad); err == nil {
		t.Fatalf("expected error for NaN feature")
	}
}

func TestLoadModelFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := LoadModel(filepath.Join(dir, "missing.json")); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}

	artifact := Artifact{
		Kind:    KindKNN,
		Classes: testClasses,
		K:       10,
		Prototypes: []Prototype{
			syntheticPrototype("blues", map[int]float64{0: 1.0}),
			syntheticPrototype("metal", map[int]float64{1: 1.0}),
		},
	}
	data, err := json.Marshal(artifact)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(dir, "model.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	model, err := LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	stats := model.Stats()
	if stats.Kind != KindKNN || stats.PrototypeCount != 2 || stats.Neighbours != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.FeatureCount != FeatureCount {
		t.Fatalf("feature count should default to %d, got %d", FeatureCount, stats.FeatureCount)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	_ = os.WriteFile(corrupt, []byte("{"), 0o644)
	if _, err := LoadModel(corrupt); err == nil || errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func featureVector(values map[int]float64) FeatureVector {
	vec := make(FeatureVector, FeatureCount)
	for idx, value := range values {
		if idx < len(vec) {
			vec[idx] = value
		}
	}
	return vec
}

func syntheticPrototype(label string, values map[int]float64) Prototype {
	return Prototype{Label: label, Features: featureVector(values)}
}

func newTestKNN(t *testing.T, k int, weighting string, protos []Prototype) *Model {
	t.Helper()
	model, err := NewModel(Artifact{
		Kind:       KindKNN,
		Classes:    testClasses,
		K:          k,
		Weighting:  weighting,
		Prototypes: protos,
	})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	return model
}

func newTestSoftmax(t *testing.T) *Model {
	t.Helper()
	coef := make([][]float64, len(testClasses))
	for i := range coef {
		coef[i] = make([]float64, FeatureCount)
		coef[i][i] = 1
	}
	model, err := NewModel(Artifact{
		Kind:         KindSoftmax,
		Classes:      testClasses,
		Coefficients: coef,
		Intercepts:   []float64{0.1, 0, -0.1},
	})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	return model
}
