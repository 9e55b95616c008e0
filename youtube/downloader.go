// Package youtube fetches the opening seconds of a video's audio track with
// yt-dlp.
package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"genre-classifier/utils"
)

const (
	DefaultBinary      = "yt-dlp"
	DefaultTimeout     = 120 * time.Second
	DefaultClipSeconds = 30
)

var (
	ErrEmptyURL = errors.New("no URL provided")
	ErrTimeout  = errors.New("download took too long and was timed out")
	ErrNotFound = errors.New("downloaded audio file not found")
)

// ExitError is returned when yt-dlp exits non-zero. Stderr holds its
// diagnostic output.
type ExitError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("yt-dlp exited with status %d", e.ExitCode)
	}
	return fmt.Sprintf("yt-dlp exited with status %d: %s", e.ExitCode, msg)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Options configures a Downloader. Zero values take the defaults.
type Options struct {
	Binary      string
	OutputDir   string
	Timeout     time.Duration
	ClipSeconds int
}

// Downloader runs one yt-dlp process per request. Every request writes to its
// own uniquely named file, so concurrent downloads never collide.
type Downloader struct {
	opts Options
}

func NewDownloader(opts Options) *Downloader {
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "tmp"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ClipSeconds <= 0 {
		opts.ClipSeconds = DefaultClipSeconds
	}
	return &Downloader{opts: opts}
}

func (d *Downloader) Timeout() time.Duration { return d.opts.Timeout }

// Args builds the yt-dlp argument vector. The URL follows "--" so it is
// never parsed as an option.
func (d *Downloader) Args(url, prefix string) []string {
	return []string{
		"-x",
		"--audio-format", "wav",
		"--download-sections", fmt.Sprintf("*0-%d", d.opts.ClipSeconds),
		"-o", filepath.Join(d.opts.OutputDir, prefix+".%(ext)s"),
		"--force-overwrites",
		"--no-playlist",
		"--",
		url,
	}
}

// Download fetches the audio of url and returns the local file path.
func (d *Downloader) Download(ctx context.Context, url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", ErrEmptyURL
	}
	if err := utils.CreateFolder(d.opts.OutputDir); err != nil {
		return "", err
	}

	prefix := utils.UniqueName("youtube")
	runCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, d.opts.Binary, d.Args(url, prefix)...)
	cmd.WaitDelay = 2 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		d.removeOutputs(prefix)
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			return "", fmt.Errorf("%w (after %v)", ErrTimeout, d.opts.Timeout)
		case ctx.Err() != nil:
			return "", ctx.Err()
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExitError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String(), Err: err}
		}
		return "", fmt.Errorf("failed to run %s: %w", d.opts.Binary, err)
	}

	path, err := d.locate(prefix)
	if err != nil {
		return "", err
	}
	return path, nil
}

// locate finds the file yt-dlp produced for prefix, preferring the WAV.
func (d *Downloader) locate(prefix string) (string, error) {
	entries, err := os.ReadDir(d.opts.OutputDir)
	if err != nil {
		return "", fmt.Errorf("scan output directory: %w", err)
	}

	var fallback string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, ".part") {
			continue
		}
		path := filepath.Join(d.opts.OutputDir, name)
		if strings.EqualFold(filepath.Ext(name), ".wav") {
			return path, nil
		}
		if fallback == "" {
			fallback = path
		}
	}
	if fallback == "" {
		return "", ErrNotFound
	}
	return fallback, nil
}

func (d *Downloader) removeOutputs(prefix string) {
	matches, _ := filepath.Glob(filepath.Join(d.opts.OutputDir, prefix+"*"))
	for _, m := range matches {
		os.Remove(m)
	}
}
