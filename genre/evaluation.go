package genre

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// ClassMetrics tracks per-class performance.
type ClassMetrics struct {
	ClassName     string  `json:"className"`
	TotalSamples  int     `json:"totalSamples"`
	CorrectCount  int     `json:"correctCount"`
	Accuracy      float64 `json:"accuracy"`
	AvgConfidence float64 `json:"avgConfidence"`
	ConfidenceStd float64 `json:"confidenceStd"`
}

// Misclassification is one row the model got wrong.
type Misclassification struct {
	Source         string  `json:"source,omitempty"`
	TrueLabel      string  `json:"trueLabel"`
	PredictedLabel string  `json:"predictedLabel"`
	Confidence     float64 `json:"confidence"`
}

// EvaluationReport is the outcome of scoring a model against labelled rows.
// Accuracy values are percentages.
type EvaluationReport struct {
	TotalSamples    int                       `json:"totalSamples"`
	CorrectCount    int                       `json:"correctCount"`
	OverallAccuracy float64                   `json:"overallAccuracy"`
	AvgConfidence   float64                   `json:"avgConfidence"`
	ClassMetrics    []ClassMetrics            `json:"classMetrics"`
	ConfusionMatrix map[string]map[string]int `json:"confusionMatrix"`
	Misclassified   []Misclassification       `json:"misclassified"`
}

// Evaluate runs every row through the model. Rows whose label the model
// does not know are still counted, as misses.
func Evaluate(model Classifier, rows []LabeledSample) (*EvaluationReport, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to evaluate")
	}
	classes := model.Classes()
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}

	report := &EvaluationReport{ConfusionMatrix: make(map[string]map[string]int)}
	confidences := make(map[string][]float64)
	perClass := make(map[string]*ClassMetrics)
	var order []string
	var all []float64

	for i, row := range rows {
		probs, err := model.PredictProba(row.Features)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		predicted, err := model.Predict(row.Features)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		confidence := probs[index[predicted]]

		m, ok := perClass[row.Label]
		if !ok {
			m = &ClassMetrics{ClassName: row.Label}
			perClass[row.Label] = m
			order = append(order, row.Label)
		}
		m.TotalSamples++
		confidences[row.Label] = append(confidences[row.Label], confidence)
		all = append(all, confidence)

		if report.ConfusionMatrix[row.Label] == nil {
			report.ConfusionMatrix[row.Label] = make(map[string]int)
		}
		report.ConfusionMatrix[row.Label][predicted]++

		if predicted == row.Label {
			m.CorrectCount++
			report.CorrectCount++
		} else {
			report.Misclassified = append(report.Misclassified, Misclassification{
				Source:         row.Source,
				TrueLabel:      row.Label,
				PredictedLabel: predicted,
				Confidence:     confidence,
			})
		}
	}

	report.TotalSamples = len(rows)
	report.OverallAccuracy = float64(report.CorrectCount) / float64(report.TotalSamples) * 100
	report.AvgConfidence = stat.Mean(all, nil)

	for _, label := range order {
		m := perClass[label]
		m.Accuracy = float64(m.CorrectCount) / float64(m.TotalSamples) * 100
		m.AvgConfidence, m.ConfidenceStd = stat.PopMeanStdDev(confidences[label], nil)
		report.ClassMetrics = append(report.ClassMetrics, *m)
	}
	return report, nil
}
