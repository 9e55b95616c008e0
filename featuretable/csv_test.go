package featuretable

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"genre-classifier/genre"
)

func sampleRows() []genre.LabeledSample {
	rows := make([]genre.LabeledSample, 2)
	for i := range rows {
		features := make(genre.FeatureVector, genre.FeatureCount)
		for j := range features {
			features[j] = float64(i*100+j) - 0.125
		}
		rows[i] = genre.LabeledSample{Features: features, Label: []string{"blues", "metal"}[i]}
	}
	return rows
}

func TestWriteHeaderOrder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, sampleRows()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	header := strings.Split(lines[0], ",")
	if len(header) != genre.FeatureCount+1 {
		t.Fatalf("expected %d columns, got %d", genre.FeatureCount+1, len(header))
	}
	if header[0] != "0" || header[39] != "39" || header[40] != "genre" {
		t.Fatalf("unexpected header %v", header)
	}
	if !strings.HasSuffix(lines[2], ",metal") {
		t.Fatalf("label should be the last column: %s", lines[2])
	}
}

func TestFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "features.csv")
	rows := sampleRows()
	if err := WriteFile(path, rows); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(got))
	}
	for i := range rows {
		if got[i].Label != rows[i].Label {
			t.Fatalf("row %d label %q, want %q", i, got[i].Label, rows[i].Label)
		}
		for j := range rows[i].Features {
			if got[i].Features[j] != rows[i].Features[j] {
				t.Fatalf("row %d feature %d: %v vs %v", i, j, got[i].Features[j], rows[i].Features[j])
			}
		}
	}
}

func TestWriteRejectsRaggedRows(t *testing.T) {
	t.Parallel()

	rows := sampleRows()
	rows[1].Features = rows[1].Features[:10]
	if err := Write(&bytes.Buffer{}, rows); err == nil {
		t.Fatalf("expected error for mismatched dimension")
	}
}

func TestWriteEmptyTableIsHeaderOnly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != "genre\n" {
		t.Fatalf("empty table = %q, want only the label header", buf.String())
	}
	if _, err := Read(&buf); !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("expected ErrEmptyTable reading it back, got %v", err)
	}
}

func TestReadErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no label column": "0,1\n1,2\n",
		"bad float":       "0,genre\nabc,rock\n",
		"empty":           "",
		"header only":     "0,genre\n",
	}
	for name, input := range cases {
		if _, err := Read(strings.NewReader(input)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
