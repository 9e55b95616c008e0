// Package featuretable persists the feature table: one row per clip with the
// MFCC means in columns "0".."N-1" followed by a "genre" column.
package featuretable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"genre-classifier/genre"
)

const LabelColumn = "genre"

var ErrEmptyTable = errors.New("feature table has no rows")

// Header returns the column names for featureCount coefficients.
func Header(featureCount int) []string {
	header := make([]string, 0, featureCount+1)
	for i := 0; i < featureCount; i++ {
		header = append(header, strconv.Itoa(i))
	}
	return append(header, LabelColumn)
}

// Write encodes rows as CSV. All rows must have the same dimension. With no
// rows only the label column header is written, as pandas does for an empty
// frame.
func Write(w io.Writer, rows []genre.LabeledSample) error {
	featureCount := 0
	if len(rows) > 0 {
		featureCount = len(rows[0].Features)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header(featureCount)); err != nil {
		return err
	}

	record := make([]string, featureCount+1)
	for i, row := range rows {
		if len(row.Features) != featureCount {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row.Features), featureCount)
		}
		for j, v := range row.Features {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		record[featureCount] = row.Label
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes the table to path atomically.
func WriteFile(path string, rows []genre.LabeledSample) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create feature table: %w", err)
	}
	if err := Write(f, rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write feature table: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Read decodes a table written by Write. The label column is matched by
// name; every other column must parse as a float.
func Read(r io.Reader) ([]genre.LabeledSample, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyTable
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	labelIdx := -1
	for i, name := range header {
		if name == LabelColumn {
			labelIdx = i
		}
	}
	if labelIdx < 0 {
		return nil, fmt.Errorf("missing %q column", LabelColumn)
	}

	var rows []genre.LabeledSample
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		features := make(genre.FeatureVector, 0, len(record)-1)
		for i, field := range record {
			if i == labelIdx {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, header[i], err)
			}
			features = append(features, v)
		}
		rows = append(rows, genre.LabeledSample{Features: features, Label: record[labelIdx]})
	}

	if len(rows) == 0 {
		return nil, ErrEmptyTable
	}
	return rows, nil
}

func ReadFile(path string) ([]genre.LabeledSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feature table: %w", err)
	}
	defer f.Close()
	return Read(f)
}
