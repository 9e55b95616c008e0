package genre

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"genre-classifier/utils"
)

// DefaultExtensions lists the file types the builder picks up.
var DefaultExtensions = []string{".wav"}

// CorpusOptions configures a corpus build. Extract is required and
// Extensions only applies to BuildCorpus.
type CorpusOptions struct {
	Extensions []string
	Extract    ExtractFunc
	Logger     *slog.Logger
	// Progress is called after every file, with a nil error on success.
	Progress func(path, genre string, err error)
}

// SkippedFile records a file that failed extraction.
type SkippedFile struct {
	Path  string `json:"path"`
	Genre string `json:"genre"`
	Error string `json:"error"`
}

// CorpusReport is the outcome of a build.
type CorpusReport struct {
	Samples   []LabeledSample `json:"-"`
	Processed int             `json:"processed"`
	Skipped   []SkippedFile   `json:"skipped"`
	PerGenre  map[string]int  `json:"perGenre"`
}

// CorpusFile is one audio file found under a genre directory.
type CorpusFile struct {
	Path  string
	Genre string
}

// ScanCorpus lists root/<genre>/<file> entries with a matching extension,
// sorted by genre then file name. Hidden entries are skipped.
func ScanCorpus(root string, extensions []string) ([]CorpusFile, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	// Extensions match case-sensitively: "clip.WAV" is not a ".wav" file.
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.TrimSpace(ext)
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}

	genres, err := discoverSubdirectories(root)
	if err != nil {
		return nil, err
	}

	var files []CorpusFile
	for _, genre := range genres {
		dir := filepath.Join(root, genre)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read genre directory %s: %w", dir, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || strings.HasPrefix(name, ".") {
				continue
			}
			if !allowed[filepath.Ext(name)] {
				continue
			}
			files = append(files, CorpusFile{Path: filepath.Join(dir, name), Genre: genre})
		}
	}
	return files, nil
}

func discoverSubdirectories(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read corpus root %s: %w", root, err)
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			dirs = append(dirs, entry.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// BuildCorpus scans root and extracts one labelled sample per file. Only a
// missing root or a cancelled context stops the build.
func BuildCorpus(ctx context.Context, root string, opts CorpusOptions) (*CorpusReport, error) {
	files, err := ScanCorpus(root, opts.Extensions)
	if err != nil {
		return nil, err
	}
	return ExtractCorpus(ctx, files, opts)
}

// ExtractCorpus extracts already scanned files in order. A file that cannot
// be processed is logged and skipped.
func ExtractCorpus(ctx context.Context, files []CorpusFile, opts CorpusOptions) (*CorpusReport, error) {
	if opts.Extract == nil {
		return nil, fmt.Errorf("corpus build requires an extractor")
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.GetLogger()
	}

	report := &CorpusReport{PerGenre: make(map[string]int)}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		logger.Info("Processing", slog.String("path", f.Path))
		features, err := opts.Extract(ctx, f.Path)
		if err == nil && len(features) == 0 {
			err = ErrEmptyAudio
		}
		if err != nil {
			logger.Error("Error processing file", slog.String("path", f.Path), slog.Any("error", err))
			report.Skipped = append(report.Skipped, SkippedFile{Path: f.Path, Genre: f.Genre, Error: err.Error()})
		} else {
			report.Samples = append(report.Samples, LabeledSample{Features: features, Label: f.Genre, Source: f.Path})
			report.Processed++
			report.PerGenre[f.Genre]++
		}
		if opts.Progress != nil {
			opts.Progress(f.Path, f.Genre, err)
		}
	}
	return report, nil
}
