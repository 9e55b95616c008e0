package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"genre-classifier/config"
	"genre-classifier/db"
	"genre-classifier/featuretable"
	"genre-classifier/genre"
	"genre-classifier/utils"
)

type evaluationConfig struct {
	ModelPath  string
	TablePath  string
	SQLitePath string
	ReportPath string
	Verbose    bool
}

type savedReport struct {
	Timestamp      time.Time `json:"timestamp"`
	ModelPath      string    `json:"modelPath"`
	ProcessingTime string    `json:"processingTime"`
	*genre.EvaluationReport
}

func main() {
	config.LoadDotEnv()
	cfg := parseFlags()

	log.SetFlags(log.Ldate | log.Ltime)
	log.Println("=== Model Evaluation ===")
	log.Printf("Model: %s\n", cfg.ModelPath)

	model, err := genre.LoadModel(cfg.ModelPath)
	if err != nil {
		log.Fatalf("ERROR: Failed to load model: %v", err)
	}
	stats := model.Stats()
	log.Printf("Loaded %s model covering %d classes\n", stats.Kind, len(stats.Classes))

	rows, err := loadRows(cfg)
	if err != nil {
		log.Fatalf("ERROR: Failed to load feature table: %v", err)
	}
	log.Printf("Evaluating %d rows\n", len(rows))

	started := time.Now()
	report, err := genre.Evaluate(model, rows)
	if err != nil {
		log.Fatalf("ERROR: evaluation failed: %v", err)
	}
	elapsed := time.Since(started)

	printEvaluationReport(report, elapsed, cfg.Verbose)

	if cfg.ReportPath != "" {
		saved := savedReport{
			Timestamp:        started,
			ModelPath:        cfg.ModelPath,
			ProcessingTime:   elapsed.String(),
			EvaluationReport: report,
		}
		if err := saveReport(saved, cfg.ReportPath); err != nil {
			log.Printf("WARNING: Failed to save report: %v\n", err)
		} else {
			log.Printf("Report saved to: %s\n", cfg.ReportPath)
		}
	}
}

func parseFlags() evaluationConfig {
	var cfg evaluationConfig
	flag.StringVar(&cfg.ModelPath, "model", utils.GetEnv("GENRE_MODEL_PATH", "model.json"), "Path to the model artifact")
	flag.StringVar(&cfg.TablePath, "table", "features.csv", "Feature table CSV to score")
	flag.StringVar(&cfg.SQLitePath, "sqlite", "", "Read rows from this SQLite database instead of the CSV")
	flag.StringVar(&cfg.ReportPath, "report", "", "Path to save a JSON report (empty to skip)")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "List every misclassified row")
	flag.Parse()
	return cfg
}

func loadRows(cfg evaluationConfig) ([]genre.LabeledSample, error) {
	if cfg.SQLitePath == "" {
		log.Printf("Table: %s\n", cfg.TablePath)
		return featuretable.ReadFile(cfg.TablePath)
	}
	log.Printf("Table: %s (sqlite)\n", cfg.SQLitePath)
	client, err := db.NewSQLiteClient(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.LoadSamples(context.Background())
}

func printEvaluationReport(report *genre.EvaluationReport, elapsed time.Duration, verbose bool) {
	log.Println()
	log.Println(strings.Repeat("=", 80))
	log.Println("EVALUATION RESULTS")
	log.Println(strings.Repeat("=", 80))

	log.Printf("Overall Accuracy: %.2f%% (%d/%d correct)\n",
		report.OverallAccuracy, report.CorrectCount, report.TotalSamples)
	log.Printf("Average Confidence: %.2f%%\n", report.AvgConfidence*100)
	log.Printf("Processing Time: %.2f seconds\n", elapsed.Seconds())
	log.Println()

	log.Println("Per-Class Performance:")
	log.Println(strings.Repeat("-", 80))
	log.Printf("%-20s %8s %10s %8s %8s\n", "Class", "Accuracy", "Confidence", "Std", "Samples")
	log.Println(strings.Repeat("-", 80))

	sorted := make([]genre.ClassMetrics, len(report.ClassMetrics))
	copy(sorted, report.ClassMetrics)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Accuracy > sorted[j].Accuracy
	})
	for _, m := range sorted {
		log.Printf("%-20s %7.1f%% %9.1f%% %8.3f %8d\n",
			m.ClassName, m.Accuracy, m.AvgConfidence*100, m.ConfidenceStd, m.TotalSamples)
	}
	log.Println()

	printConfusionMatrix(report.ConfusionMatrix)

	if verbose && len(report.Misclassified) > 0 {
		log.Printf("Misclassifications (%d total):\n", len(report.Misclassified))
		for _, miss := range report.Misclassified {
			log.Printf("  %s [%s] -> predicted as '%s' (%.1f%% confidence)\n",
				miss.Source, miss.TrueLabel, miss.PredictedLabel, miss.Confidence*100)
		}
	}
}

func printConfusionMatrix(matrix map[string]map[string]int) {
	if len(matrix) == 0 {
		return
	}

	seen := make(map[string]bool)
	for actual, row := range matrix {
		seen[actual] = true
		for predicted := range row {
			seen[predicted] = true
		}
	}
	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	log.Println("Confusion Matrix:")
	fmt.Printf("%-15s", "Actual \\ Pred")
	for _, label := range labels {
		fmt.Printf(" %6s", truncate(label, 6))
	}
	fmt.Println()
	for _, actual := range labels {
		if matrix[actual] == nil {
			continue
		}
		fmt.Printf("%-15s", truncate(actual, 15))
		for _, predicted := range labels {
			if count := matrix[actual][predicted]; count > 0 {
				fmt.Printf(" %6d", count)
			} else {
				fmt.Printf(" %6s", ".")
			}
		}
		fmt.Println()
	}
	fmt.Println()
}

func saveReport(report savedReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-2] + ".."
}
