package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"genre-classifier/utils"

	"github.com/mdobak/go-xerrors"
)

// runTempJanitor removes acquired audio older than ttl until ctx ends.
// Files stay long enough for the result page to play them back.
func runTempJanitor(ctx context.Context, dir string, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sweepTempDir(ctx, dir, ttl, now)
		}
	}
}

func sweepTempDir(ctx context.Context, dir string, ttl time.Duration, now time.Time) int {
	logger := utils.GetLogger()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WarnContext(ctx, "temp sweep failed", slog.Any("error", xerrors.New(err)))
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) < ttl {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			logger.WarnContext(ctx, "failed to remove temp file",
				slog.String("file", entry.Name()),
				slog.Any("error", xerrors.New(err)),
			)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.DebugContext(ctx, "swept temp files", slog.Int("removed", removed))
	}
	return removed
}
