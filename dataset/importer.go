package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"genre-classifier/genre"
	"genre-classifier/utils"
	"genre-classifier/wav"
)

// Source is what the importer needs from a hosted dataset.
type Source interface {
	Page(ctx context.Context, offset, length int) (*RowsPage, error)
	Fetch(ctx context.Context, assetURL string) ([]byte, error)
}

// ImporterOptions configures an import run.
type ImporterOptions struct {
	OutputDir   string
	AudioColumn string
	LabelColumn string
	PageSize    int
	SampleRate  int
	// Limit stops after this many samples when positive.
	Limit    int
	Logger   *slog.Logger
	Progress func(path string, index, total int)
}

// ImportReport summarises a finished run.
type ImportReport struct {
	Classes  []string       `json:"classes"`
	Saved    int            `json:"saved"`
	PerGenre map[string]int `json:"perGenre"`
	Elapsed  time.Duration  `json:"elapsed"`
}

// Importer writes a hosted dataset out as <out>/<genre>/<genre>.<index>.wav.
type Importer struct {
	source Source
	opts   ImporterOptions
}

func NewImporter(source Source, opts ImporterOptions) *Importer {
	if opts.OutputDir == "" {
		opts.OutputDir = "genres"
	}
	if opts.AudioColumn == "" {
		opts.AudioColumn = "audio"
	}
	if opts.LabelColumn == "" {
		opts.LabelColumn = "genre"
	}
	if opts.PageSize <= 0 || opts.PageSize > MaxPageSize {
		opts.PageSize = MaxPageSize
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = genre.DefaultSampleRate
	}
	if opts.Logger == nil {
		opts.Logger = utils.GetLogger()
	}
	return &Importer{source: source, opts: opts}
}

// SampleFileName is the on-disk name of the index-th sample.
func SampleFileName(genreName string, index int) string {
	return fmt.Sprintf("%s.%05d.wav", genreName, index)
}

// Run imports every sample in dataset order. The first error aborts the run.
func (im *Importer) Run(ctx context.Context) (*ImportReport, error) {
	started := time.Now()

	first, err := im.source.Page(ctx, 0, im.opts.PageSize)
	if err != nil {
		return nil, err
	}
	classes, err := classNames(first.Features, im.opts.LabelColumn)
	if err != nil {
		return nil, err
	}

	for _, name := range classes {
		if err := utils.CreateFolder(filepath.Join(im.opts.OutputDir, name)); err != nil {
			return nil, err
		}
	}

	total := first.NumRowsTotal
	if im.opts.Limit > 0 && (total == 0 || im.opts.Limit < total) {
		total = im.opts.Limit
	}

	report := &ImportReport{Classes: classes, PerGenre: make(map[string]int)}
	page := first
	index := 0
	for {
		for _, row := range page.Rows {
			if im.opts.Limit > 0 && index >= im.opts.Limit {
				report.Elapsed = time.Since(started)
				return report, nil
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}

			path, label, err := im.importRow(ctx, row, classes, index)
			if err != nil {
				return report, fmt.Errorf("sample %d: %w", index, err)
			}
			im.opts.Logger.Info("Saved", slog.String("path", path))
			report.Saved++
			report.PerGenre[label]++
			if im.opts.Progress != nil {
				im.opts.Progress(path, index, total)
			}
			index++
		}

		if lastPage(page, index, im.opts.PageSize) {
			break
		}
		page, err = im.source.Page(ctx, index, im.opts.PageSize)
		if err != nil {
			return report, err
		}
	}

	report.Elapsed = time.Since(started)
	return report, nil
}

func lastPage(page *RowsPage, consumed, pageSize int) bool {
	if len(page.Rows) == 0 {
		return true
	}
	if page.NumRowsTotal > 0 {
		return consumed >= page.NumRowsTotal
	}
	return len(page.Rows) < pageSize
}

func (im *Importer) importRow(ctx context.Context, row Row, classes []string, index int) (string, string, error) {
	label, err := decodeLabel(row.Values[im.opts.LabelColumn], classes)
	if err != nil {
		return "", "", err
	}
	asset, err := decodeAudio(row.Values[im.opts.AudioColumn])
	if err != nil {
		return "", "", err
	}

	payload, err := im.source.Fetch(ctx, asset.Src)
	if err != nil {
		return "", "", err
	}
	clip, err := im.decodePayload(ctx, payload, asset)
	if err != nil {
		return "", "", err
	}

	path := filepath.Join(im.opts.OutputDir, label, SampleFileName(label, index))
	if err := wav.WriteWavFile(path, clip.Samples, clip.SampleRate); err != nil {
		return "", "", err
	}
	return path, label, nil
}

func (im *Importer) decodePayload(ctx context.Context, payload []byte, asset AudioAsset) (genre.Clip, error) {
	opts := genre.LoadOptions{SampleRate: im.opts.SampleRate}
	if asset.Type == "" || strings.Contains(asset.Type, "wav") {
		return genre.DecodeClip(payload, asset.Src, opts)
	}

	// Non-WAV renditions go through the file loader, untruncated.
	ext := ".mp3"
	if !strings.Contains(asset.Type, "mpeg") && !strings.Contains(asset.Type, "mp3") {
		ext = ".audio"
	}
	tmp, err := os.CreateTemp("", "import-*"+ext)
	if err != nil {
		return genre.Clip{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return genre.Clip{}, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return genre.Clip{}, err
	}

	opts.MaxDuration = 24 * time.Hour
	return genre.LoadClip(ctx, tmp.Name(), opts)
}

func classNames(features []Feature, labelColumn string) ([]string, error) {
	for _, f := range features {
		if f.Name != labelColumn {
			continue
		}
		if f.Type.Kind != "ClassLabel" || len(f.Type.Names) == 0 {
			return nil, fmt.Errorf("column %q is not a class label (type %q)", labelColumn, f.Type.Kind)
		}
		return f.Type.Names, nil
	}
	return nil, fmt.Errorf("dataset has no %q column", labelColumn)
}

func decodeLabel(raw json.RawMessage, classes []string) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("row has no label")
	}
	var idx int
	if err := json.Unmarshal(raw, &idx); err != nil {
		return "", fmt.Errorf("label is not an integer: %w", err)
	}
	if idx < 0 || idx >= len(classes) {
		return "", fmt.Errorf("label %d outside %d classes", idx, len(classes))
	}
	return classes[idx], nil
}

// decodeAudio accepts both the list form and the single-object form of an
// audio cell and returns the first asset.
func decodeAudio(raw json.RawMessage) (AudioAsset, error) {
	if len(raw) == 0 {
		return AudioAsset{}, errors.New("row has no audio")
	}

	var list []AudioAsset
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 || list[0].Src == "" {
			return AudioAsset{}, errors.New("audio cell has no source")
		}
		return list[0], nil
	}

	var single AudioAsset
	if err := json.Unmarshal(raw, &single); err != nil {
		return AudioAsset{}, fmt.Errorf("unrecognised audio cell: %w", err)
	}
	if single.Src == "" {
		return AudioAsset{}, errors.New("audio cell has no source")
	}
	return single, nil
}
