package db

import (
	"context"
	"path/filepath"
	"testing"

	"genre-classifier/genre"
)

func TestStoreAndLoadSamples(t *testing.T) {
	t.Parallel()

	client, err := NewSQLiteClient(filepath.Join(t.TempDir(), "nested", "features.db"))
	if err != nil {
		t.Fatalf("NewSQLiteClient: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	samples := []genre.LabeledSample{
		{Source: "blues/blues.00000.wav", Label: "blues", Features: genre.FeatureVector{1.5, -2}},
		{Source: "rock/rock.00001.wav", Label: "rock", Features: genre.FeatureVector{0.25, 3}},
	}
	if err := client.StoreSamples(ctx, samples); err != nil {
		t.Fatalf("StoreSamples: %v", err)
	}
	// Re-storing the same source replaces the row.
	samples[0].Features = genre.FeatureVector{9, 9}
	if err := client.StoreSamples(ctx, samples[:1]); err != nil {
		t.Fatalf("StoreSamples: %v", err)
	}

	loaded, err := client.LoadSamples(ctx)
	if err != nil {
		t.Fatalf("LoadSamples: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(loaded))
	}

	byLabel := map[string]genre.LabeledSample{}
	for _, s := range loaded {
		byLabel[s.Label] = s
	}
	if byLabel["blues"].Features[0] != 9 {
		t.Fatalf("expected replaced features, got %v", byLabel["blues"].Features)
	}
	if byLabel["rock"].Features[1] != 3 {
		t.Fatalf("unexpected rock features %v", byLabel["rock"].Features)
	}

	counts, err := client.CountByGenre(ctx)
	if err != nil {
		t.Fatalf("CountByGenre: %v", err)
	}
	if counts["blues"] != 1 || counts["rock"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestParseDSNKeepsCallerOptions(t *testing.T) {
	t.Parallel()

	file, options, err := parseDSN("data/features.db?_busy_timeout=100&cache=shared")
	if err != nil {
		t.Fatalf("parseDSN: %v", err)
	}
	if file != "data/features.db" {
		t.Fatalf("file = %q", file)
	}
	if got := options.Get("_busy_timeout"); got != "100" {
		t.Fatalf("_busy_timeout = %q, want caller value", got)
	}
	if options.Get("cache") != "shared" || options.Get("_journal_mode") != "WAL" {
		t.Fatalf("unexpected options %v", options)
	}

	if _, _, err := parseDSN("?_busy_timeout=1"); err == nil {
		t.Fatal("expected error for a dsn without a file")
	}
	if _, _, err := parseDSN("x.db?bad=%zz"); err == nil {
		t.Fatal("expected error for a malformed query")
	}
}

func TestNewSQLiteClientWithOptions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a", "b", "features.db")
	client, err := NewSQLiteClient(path + "?_busy_timeout=250")
	if err != nil {
		t.Fatalf("NewSQLiteClient: %v", err)
	}
	defer client.Close()

	counts, err := client.CountByGenre(context.Background())
	if err != nil {
		t.Fatalf("CountByGenre: %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("expected an empty database, got %v", counts)
	}
}
