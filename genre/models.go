package genre

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// FeatureCount is the number of MFCC coefficients in every feature vector.
const FeatureCount = 40

// FeatureVector holds the per-coefficient time means of one clip.
type FeatureVector []float64

// Clip is decoded mono audio at the analysis sample rate.
type Clip struct {
	Samples    []float64
	SampleRate int
	Source     string
}

// Duration reports the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// LabeledSample is one row of the feature table.
type LabeledSample struct {
	Features FeatureVector `json:"features"`
	Label    string        `json:"genre"`
	Source   string        `json:"source,omitempty"`
}

// ClassProbability is the model's probability for one genre.
type ClassProbability struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Result is what a single classification attempt produces.
type Result struct {
	Label         string             `json:"label"`
	DisplayLabel  string             `json:"displayLabel"`
	Probabilities []ClassProbability `json:"probabilities"`
	Source        string             `json:"source,omitempty"`
	AudioURL      string             `json:"audioUrl,omitempty"`
	LatencyMs     float64            `json:"latencyMs"`
}

// ModelStats exposes metadata about the loaded artifact.
type ModelStats struct {
	Kind           string   `json:"kind"`
	Path           string   `json:"path,omitempty"`
	Classes        []string `json:"classes"`
	FeatureCount   int      `json:"featureCount"`
	PrototypeCount int      `json:"prototypeCount,omitempty"`
	Neighbours     int      `json:"k,omitempty"`
	Scaled         bool     `json:"scaled"`
}

// DisplayLabel upper-cases the first letter and lower-cases the rest.
func DisplayLabel(label string) string {
	r, size := utf8.DecodeRuneInString(label)
	if r == utf8.RuneError {
		return label
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(label[size:])
}
