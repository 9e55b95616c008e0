package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"strings"

	"genre-classifier/genre"
	"genre-classifier/utils"
)

const previewCoefficients = 3

// Extracts features from one file several times and reports whether every
// run produced the same vector.
func main() {
	runs := flag.Int("runs", 5, "Number of extractions (at least 2)")
	flag.Parse()
	if flag.NArg() < 1 {
		log.Fatal("Usage: test_determinism [-runs N] <audio-file>")
	}
	if err := validateRuns(*runs); err != nil {
		log.Fatal(err)
	}
	testFile := flag.Arg(0)
	log.Printf("Testing determinism with: %s\n", testFile)

	extractor, err := genre.NewExtractor(genre.LoadOptions{
		SampleRate: utils.GetEnvInt("GENRE_SAMPLE_RATE", genre.DefaultSampleRate),
		FFmpegPath: utils.GetEnv("FFMPEG_PATH", "ffmpeg"),
	}, utils.GetEnvInt("GENRE_N_MFCC", genre.FeatureCount))
	if err != nil {
		log.Fatalf("configure extractor: %v", err)
	}

	var featureSets []genre.FeatureVector
	for i := 0; i < *runs; i++ {
		features, err := extractor.ExtractFile(context.Background(), testFile)
		if err != nil {
			log.Fatalf("Run %d failed: %v", i+1, err)
		}
		featureSets = append(featureSets, features)
		log.Printf("Run %d: first coefficients %s", i+1, preview(features, previewCoefficients))
	}

	fmt.Println("\n=== Determinism Check ===")
	maxDiff, diffs := compareRuns(featureSets)
	for _, d := range diffs {
		fmt.Println(d)
	}

	if maxDiff == 0 {
		fmt.Printf("All %d runs produced identical %d-dim vectors\n", len(featureSets), len(featureSets[0]))
		return
	}
	log.Fatalf("Feature extraction is NON-DETERMINISTIC (max diff: %e)", maxDiff)
}

func validateRuns(runs int) error {
	if runs < 2 {
		return fmt.Errorf("-runs must be at least 2 to compare vectors, got %d", runs)
	}
	return nil
}

// preview formats at most n leading coefficients.
func preview(v genre.FeatureVector, n int) string {
	if n > len(v) {
		n = len(v)
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%.10f", v[i])
	}
	return strings.Join(parts, ", ")
}

// compareRuns checks every run against the first. Vectors of different
// length count as an infinite difference.
func compareRuns(sets []genre.FeatureVector) (float64, []string) {
	var (
		maxDiff float64
		diffs   []string
	)
	for i := 1; i < len(sets); i++ {
		if len(sets[i]) != len(sets[0]) {
			diffs = append(diffs, fmt.Sprintf("Run %d has %d coefficients, run 1 has %d", i+1, len(sets[i]), len(sets[0])))
			maxDiff = math.Inf(1)
			continue
		}
		for j := range sets[0] {
			diff := math.Abs(sets[0][j] - sets[i][j])
			if diff > maxDiff {
				maxDiff = diff
			}
			if diff > 0 {
				diffs = append(diffs, fmt.Sprintf("Coefficient %d differs between run 1 and run %d: %.15f vs %.15f",
					j, i+1, sets[0][j], sets[i][j]))
			}
		}
	}
	return maxDiff, diffs
}
