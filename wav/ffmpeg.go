package wav

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
)

// DefaultConvertTimeout bounds a single ffmpeg conversion.
const DefaultConvertTimeout = 2 * time.Minute

// CheckFFmpegAvailable reports whether the ffmpeg binary can be executed.
func CheckFFmpegAvailable(ffmpegPath string) error {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if _, err := exec.LookPath(ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found (%s): %w", ffmpegPath, err)
	}
	return nil
}

// ConvertToWAV transcodes inputPath to 16-bit PCM WAV with the given channel
// count. The output lands next to the input and the caller removes it.
func ConvertToWAV(ctx context.Context, ffmpegPath, inputPath string, channels int) (string, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if channels < 1 {
		channels = 1
	}
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("input file: %w", err)
	}

	ext := filepath.Ext(inputPath)
	outputPath := strings.TrimSuffix(inputPath, ext) + "-converted.wav"

	ctx, cancel := context.WithTimeout(ctx, DefaultConvertTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-y",
		"-loglevel", "error",
		"-i", inputPath,
		"-c:a", "pcm_s16le",
		"-ac", fmt.Sprint(channels),
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("ffmpeg timed out after %v", DefaultConvertTimeout)
		}
		return "", fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return outputPath, nil
}
