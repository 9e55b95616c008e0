package genre

// Model artifact
//
// The artifact is a JSON document produced by the (external) training step.
// Two model families are understood:
//
//   knn      stored training vectors; the k nearest (Euclidean) vote for their
//            genre, either uniformly or weighted by inverse distance. The class
//            probability is the vote share.
//   softmax  a multinomial linear model: z = W.x + b, p = softmax(z). Binary
//            models with a single coefficient row use the logistic form.
//
// Either family may carry a z-score scaler applied before the model. The
// artifact is loaded once and never mutated, so a *Model is safe for
// concurrent use.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
)

const (
	KindKNN     = "knn"
	KindSoftmax = "softmax"

	WeightingUniform  = "uniform"
	WeightingDistance = "distance"
)

var ErrModelNotFound = errors.New("model file not found")

// Classifier is the contract the interactive path relies on.
type Classifier interface {
	Predict(features FeatureVector) (string, error)
	PredictProba(features FeatureVector) ([]float64, error)
	Classes() []string
}

// Prototype is one stored training vector of a knn artifact.
type Prototype struct {
	Label    string    `json:"label"`
	Features []float64 `json:"features"`
}

// Artifact is the serialised model.
type Artifact struct {
	Kind         string         `json:"kind"`
	Classes      []string       `json:"classes"`
	FeatureCount int            `json:"feature_count"`
	Scaler       *FeatureScaler `json:"scaler,omitempty"`

	K          int         `json:"k,omitempty"`
	Weighting  string      `json:"weighting,omitempty"`
	Prototypes []Prototype `json:"prototypes,omitempty"`

	Coefficients [][]float64 `json:"coefficients,omitempty"`
	Intercepts   []float64   `json:"intercepts,omitempty"`
}

// Model is a validated, immutable artifact.
type Model struct {
	artifact   Artifact
	path       string
	classIndex map[string]int
	// prototype labels resolved to class indices
	protoClass []int
	protoFeat  [][]float64
}

type distancePair struct {
	index    int
	distance float64
}

// LoadModel reads and validates the artifact at path.
func LoadModel(path string) (*Model, error) {
	resolved := filepath.Clean(path)
	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrModelNotFound, resolved, err)
		}
		return nil, fmt.Errorf("failed to read model (%s): %w", resolved, err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("unable to parse model: %w", err)
	}

	model, err := NewModel(artifact)
	if err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", resolved, err)
	}
	model.path = resolved
	return model, nil
}

// NewModel validates an in-memory artifact.
func NewModel(artifact Artifact) (*Model, error) {
	if len(artifact.Classes) == 0 {
		return nil, errors.New("model declares no classes")
	}
	classIndex := make(map[string]int, len(artifact.Classes))
	for i, c := range artifact.Classes {
		if c == "" {
			return nil, fmt.Errorf("class %d has an empty name", i)
		}
		if _, dup := classIndex[c]; dup {
			return nil, fmt.Errorf("duplicate class %q", c)
		}
		classIndex[c] = i
	}
	if artifact.FeatureCount == 0 {
		artifact.FeatureCount = FeatureCount
	}
	if artifact.Scaler != nil {
		if err := artifact.Scaler.validate(artifact.FeatureCount); err != nil {
			return nil, err
		}
	}

	m := &Model{artifact: artifact, classIndex: classIndex}

	switch artifact.Kind {
	case KindKNN:
		if err := m.initKNN(); err != nil {
			return nil, err
		}
	case KindSoftmax:
		if err := m.initSoftmax(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown model kind %q", artifact.Kind)
	}
	return m, nil
}

func (m *Model) initKNN() error {
	a := &m.artifact
	if len(a.Prototypes) == 0 {
		return errors.New("knn model has no prototypes")
	}
	if a.K <= 0 {
		a.K = 5
	}
	if a.K > len(a.Prototypes) {
		a.K = len(a.Prototypes)
	}
	switch a.Weighting {
	case "":
		a.Weighting = WeightingUniform
	case WeightingUniform, WeightingDistance:
	default:
		return fmt.Errorf("unknown knn weighting %q", a.Weighting)
	}

	m.protoClass = make([]int, len(a.Prototypes))
	m.protoFeat = make([][]float64, len(a.Prototypes))
	for i, p := range a.Prototypes {
		idx, ok := m.classIndex[p.Label]
		if !ok {
			return fmt.Errorf("prototype %d has label %q outside the class list", i, p.Label)
		}
		if len(p.Features) != a.FeatureCount {
			return fmt.Errorf("prototype %d has %d features, expected %d", i, len(p.Features), a.FeatureCount)
		}
		m.protoClass[i] = idx
		m.protoFeat[i] = m.scale(p.Features)
	}
	return nil
}

func (m *Model) initSoftmax() error {
	a := m.artifact
	rows := len(a.Coefficients)
	binary := len(a.Classes) == 2 && rows == 1
	if rows != len(a.Classes) && !binary {
		return fmt.Errorf("softmax model has %d coefficient rows for %d classes", rows, len(a.Classes))
	}
	if len(a.Intercepts) != rows {
		return fmt.Errorf("softmax model has %d intercepts for %d rows", len(a.Intercepts), rows)
	}
	for i, row := range a.Coefficients {
		if len(row) != a.FeatureCount {
			return fmt.Errorf("coefficient row %d has %d weights, expected %d", i, len(row), a.FeatureCount)
		}
	}
	return nil
}

// Classes returns the known genres in the order probabilities are reported.
func (m *Model) Classes() []string {
	out := make([]string, len(m.artifact.Classes))
	copy(out, m.artifact.Classes)
	return out
}

func (m *Model) Stats() ModelStats {
	stats := ModelStats{
		Kind:         m.artifact.Kind,
		Path:         m.path,
		Classes:      m.Classes(),
		FeatureCount: m.artifact.FeatureCount,
		Scaled:       m.artifact.Scaler != nil,
	}
	if m.artifact.Kind == KindKNN {
		stats.PrototypeCount = len(m.artifact.Prototypes)
		stats.Neighbours = m.artifact.K
	}
	return stats
}

// PredictProba returns one probability per class, in Classes() order.
func (m *Model) PredictProba(features FeatureVector) ([]float64, error) {
	if len(features) != m.artifact.FeatureCount {
		return nil, fmt.Errorf("feature vector has %d values, model expects %d", len(features), m.artifact.FeatureCount)
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("feature %d is not finite", i)
		}
	}

	x := m.scale(features)
	if m.artifact.Kind == KindKNN {
		return m.knnProba(x), nil
	}
	return m.softmaxProba(x), nil
}

// Predict returns the most probable class. Ties go to the earlier class.
func (m *Model) Predict(features FeatureVector) (string, error) {
	probs, err := m.PredictProba(features)
	if err != nil {
		return "", err
	}
	return m.artifact.Classes[argmax(probs)], nil
}

func (m *Model) scale(features []float64) []float64 {
	if m.artifact.Scaler == nil {
		out := make([]float64, len(features))
		copy(out, features)
		return out
	}
	return m.artifact.Scaler.Transform(features)
}

func (m *Model) knnProba(x []float64) []float64 {
	pairs := make([]distancePair, len(m.protoFeat))
	for i, p := range m.protoFeat {
		pairs[i] = distancePair{index: i, distance: euclideanDistance(x, p)}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].distance < pairs[j].distance
	})
	neighbours := pairs[:m.artifact.K]

	votes := make([]float64, len(m.artifact.Classes))
	if m.artifact.Weighting == WeightingDistance {
		// Exact matches take all of the weight.
		exact := false
		for _, n := range neighbours {
			if n.distance == 0 {
				votes[m.protoClass[n.index]]++
				exact = true
			}
		}
		if !exact {
			for _, n := range neighbours {
				votes[m.protoClass[n.index]] += 1 / n.distance
			}
		}
	} else {
		for _, n := range neighbours {
			votes[m.protoClass[n.index]]++
		}
	}

	var total float64
	for _, v := range votes {
		total += v
	}
	for i := range votes {
		votes[i] /= total
	}
	return votes
}

func (m *Model) softmaxProba(x []float64) []float64 {
	a := m.artifact
	logits := make([]float64, len(a.Coefficients))
	for r, row := range a.Coefficients {
		z := a.Intercepts[r]
		for i, w := range row {
			z += w * x[i]
		}
		logits[r] = z
	}

	if len(logits) == 1 {
		p := 1 / (1 + math.Exp(-logits[0]))
		return []float64{1 - p, p}
	}

	peak := logits[argmax(logits)]
	var sum float64
	probs := make([]float64, len(logits))
	for i, z := range logits {
		probs[i] = math.Exp(z - peak)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func euclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
