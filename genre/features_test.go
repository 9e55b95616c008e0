package genre

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"genre-classifier/wav"
)

func writeTone(t *testing.T, path string, freq float64, sampleRate int, seconds float64) {
	t.Helper()
	n := int(seconds * float64(sampleRate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.3 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	if err := wav.WriteWavFile(path, samples, sampleRate); err != nil {
		t.Fatalf("write tone: %v", err)
	}
}

func TestLoadClipTruncatesAndResamples(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "long.wav")
	writeTone(t, path, 440, 44100, 3)

	clip, err := LoadClip(context.Background(), path, LoadOptions{MaxDuration: 2 * time.Second})
	if err != nil {
		t.Fatalf("LoadClip: %v", err)
	}
	if clip.SampleRate != DefaultSampleRate {
		t.Fatalf("expected %d Hz, got %d", DefaultSampleRate, clip.SampleRate)
	}
	if len(clip.Samples) != 2*DefaultSampleRate {
		t.Fatalf("expected 2s of audio, got %d samples", len(clip.Samples))
	}
}

func TestExtractFileVectorLength(t *testing.T) {
	t.Parallel()

	extractor, err := NewExtractor(LoadOptions{}, FeatureCount)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}

	dir := t.TempDir()
	for _, seconds := range []float64{0.05, 1, 31} {
		path := filepath.Join(dir, "tone.wav")
		writeTone(t, path, 220, 22050, seconds)

		features, err := extractor.ExtractFile(context.Background(), path)
		if err != nil {
			t.Fatalf("%.2fs: ExtractFile: %v", seconds, err)
		}
		if len(features) != FeatureCount {
			t.Fatalf("%.2fs: expected %d features, got %d", seconds, FeatureCount, len(features))
		}
	}
}

func TestExtractionIsDeterministic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	writeTone(t, path, 330, 22050, 2)

	extractor, err := NewExtractor(LoadOptions{}, FeatureCount)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	first, err := extractor.ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	second, err := extractor.ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("feature %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestExtractClipResamples(t *testing.T) {
	t.Parallel()

	extractor, err := NewExtractor(LoadOptions{}, FeatureCount)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	native := make([]float64, 44100)
	for i := range native {
		native[i] = math.Sin(2 * math.Pi * 440 * float64(i) / 44100)
	}
	features, err := extractor.ExtractClip(Clip{Samples: native, SampleRate: 44100})
	if err != nil {
		t.Fatalf("ExtractClip: %v", err)
	}
	if len(features) != FeatureCount {
		t.Fatalf("expected %d features, got %d", FeatureCount, len(features))
	}

	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("feature %d is not finite: %v", i, v)
		}
	}

	if _, err := extractor.ExtractClip(Clip{SampleRate: DefaultSampleRate}); !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestLoadClipRejectsCorruptWav(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVEjunk"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadClip(context.Background(), path, LoadOptions{}); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDecodeClipKeepsFullLength(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "full.wav")
	writeTone(t, path, 440, 22050, 1.5)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	clip, err := DecodeClip(data, "memory", LoadOptions{MaxDuration: time.Second})
	if err != nil {
		t.Fatalf("DecodeClip: %v", err)
	}
	if math.Abs(clip.Duration()-1.5) > 1e-9 {
		t.Fatalf("expected 1.5s, got %f", clip.Duration())
	}
}
