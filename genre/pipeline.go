package genre

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Stage names the step of a classification attempt.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageAcquiring  Stage = "acquiring"
	StageExtracting Stage = "extracting"
	StagePredicting Stage = "predicting"
	StageDisplayed  Stage = "result_displayed"
)

// StageError records where an attempt failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage an error was raised in, or StageIdle.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageIdle
}

// ExtractFunc produces a feature vector for a file on disk.
type ExtractFunc func(ctx context.Context, path string) (FeatureVector, error)

// Pipeline bundles the loaded model with the extraction used to build the
// feature table. It holds no per-request state.
type Pipeline struct {
	Model   Classifier
	Extract ExtractFunc
}

func NewPipeline(model Classifier, extractor *Extractor) *Pipeline {
	return &Pipeline{Model: model, Extract: extractor.ExtractFile}
}

// ClassifyFile runs extraction then prediction on an acquired file.
func (p *Pipeline) ClassifyFile(ctx context.Context, path string) (*Result, error) {
	started := time.Now()

	features, err := p.Extract(ctx, path)
	if err != nil {
		return nil, &StageError{Stage: StageExtracting, Err: err}
	}

	result, err := p.Classify(features)
	if err != nil {
		return nil, err
	}
	result.Source = path
	result.LatencyMs = float64(time.Since(started).Microseconds()) / 1000
	return result, nil
}

// Classify predicts a label and the full distribution for features.
func (p *Pipeline) Classify(features FeatureVector) (*Result, error) {
	label, err := p.Model.Predict(features)
	if err != nil {
		return nil, &StageError{Stage: StagePredicting, Err: err}
	}
	probs, err := p.Model.PredictProba(features)
	if err != nil {
		return nil, &StageError{Stage: StagePredicting, Err: err}
	}

	classes := p.Model.Classes()
	if len(probs) != len(classes) {
		return nil, &StageError{
			Stage: StagePredicting,
			Err:   fmt.Errorf("model returned %d probabilities for %d classes", len(probs), len(classes)),
		}
	}

	known := false
	distribution := make([]ClassProbability, len(classes))
	var sum float64
	for i, c := range classes {
		distribution[i] = ClassProbability{Label: c, Probability: probs[i]}
		sum += probs[i]
		if c == label {
			known = true
		}
	}
	if !known {
		return nil, &StageError{Stage: StagePredicting, Err: fmt.Errorf("model predicted unknown class %q", label)}
	}
	if math.Abs(sum-1) > 1e-6 {
		return nil, &StageError{Stage: StagePredicting, Err: fmt.Errorf("probabilities sum to %f", sum)}
	}

	return &Result{
		Label:         label,
		DisplayLabel:  DisplayLabel(label),
		Probabilities: distribution,
	}, nil
}
