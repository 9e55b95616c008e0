package genre

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func TestBuildCorpusSkipsFailures(t *testing.T) {
	t.Parallel()

	files := map[string]string{}
	for i := 0; i < 5; i++ {
		files[filepath.Join("blues", "blues.0000"+string(rune('0'+i))+".wav")] = "ok"
		files[filepath.Join("rock", "rock.0000"+string(rune('0'+i))+".wav")] = "ok"
	}
	files[filepath.Join("rock", "rock.00002.wav")] = "corrupt"
	root := seedCorpus(t, files)

	var progress int
	report, err := BuildCorpus(context.Background(), root, CorpusOptions{
		Logger: quietLogger(),
		Extract: func(_ context.Context, path string) (FeatureVector, error) {
			data, _ := os.ReadFile(path)
			if string(data) == "corrupt" {
				return nil, errors.New("unreadable")
			}
			return featureVector(map[int]float64{0: 1}), nil
		},
		Progress: func(string, string, error) { progress++ },
	})
	if err != nil {
		t.Fatalf("BuildCorpus: %v", err)
	}
	if report.Processed != 9 || len(report.Samples) != 9 {
		t.Fatalf("expected 9 rows, got %d", len(report.Samples))
	}
	if len(report.Skipped) != 1 || !strings.HasSuffix(report.Skipped[0].Path, "rock.00002.wav") {
		t.Fatalf("expected one skipped file, got %+v", report.Skipped)
	}
	if report.PerGenre["blues"] != 5 || report.PerGenre["rock"] != 4 {
		t.Fatalf("unexpected per-genre counts %v", report.PerGenre)
	}
	if progress != 10 {
		t.Fatalf("expected progress for all 10 files, got %d", progress)
	}
	if report.Samples[0].Label != "blues" || report.Samples[8].Label != "rock" {
		t.Fatalf("labels should follow directory names in sorted order")
	}
}

func TestScanCorpusFiltersExtensions(t *testing.T) {
	t.Parallel()

	root := seedCorpus(t, map[string]string{
		"jazz/a.wav":       "",
		"jazz/b.WAV":       "",
		"jazz/c.mp3":       "",
		"jazz/notes.txt":   "",
		"jazz/.hidden.wav": "",
		".cache/x.wav":     "",
		"pop/nested/d.wav": "",
		"pop/e.wav":        "",
	})

	files, err := ScanCorpus(root, nil)
	if err != nil {
		t.Fatalf("ScanCorpus: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 wav files, got %+v", files)
	}

	withMP3, err := ScanCorpus(root, []string{"wav", ".mp3"})
	if err != nil {
		t.Fatalf("ScanCorpus: %v", err)
	}
	if len(withMP3) != 3 {
		t.Fatalf("expected 3 files with mp3 enabled, got %d", len(withMP3))
	}
}

func TestBuildCorpusMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := BuildCorpus(context.Background(), filepath.Join(t.TempDir(), "nope"), CorpusOptions{
		Logger:  quietLogger(),
		Extract: func(context.Context, string) (FeatureVector, error) { return nil, nil },
	})
	if err == nil {
		t.Fatalf("expected error for missing root")
	}
}

func TestExtractCorpusUsesGivenFiles(t *testing.T) {
	t.Parallel()

	root := seedCorpus(t, map[string]string{
		filepath.Join("jazz", "jazz.00000.wav"):   "ok",
		filepath.Join("jazz", "jazz.00001.wav"):   "ok",
		filepath.Join("metal", "metal.00000.wav"): "ok",
	})
	files, err := ScanCorpus(root, nil)
	if err != nil {
		t.Fatalf("ScanCorpus: %v", err)
	}

	// A file added after the scan is not picked up.
	if err := os.WriteFile(filepath.Join(root, "metal", "metal.00001.wav"), []byte("ok"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var seen []string
	report, err := ExtractCorpus(context.Background(), files[1:], CorpusOptions{
		Logger: quietLogger(),
		Extract: func(_ context.Context, path string) (FeatureVector, error) {
			seen = append(seen, filepath.Base(path))
			return featureVector(map[int]float64{0: 1}), nil
		},
	})
	if err != nil {
		t.Fatalf("ExtractCorpus: %v", err)
	}
	if got := strings.Join(seen, ","); got != "jazz.00001.wav,metal.00000.wav" {
		t.Fatalf("extracted %s", got)
	}
	if report.Processed != 2 || report.PerGenre["jazz"] != 1 || report.PerGenre["metal"] != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}
