package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GetEnv returns the value of the environment variable key, or fallback when
// it is unset or blank.
func GetEnv(key string, fallback ...string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}

// GetEnvInt parses key as an integer, falling back on absence or parse error.
func GetEnvInt(key string, fallback int) int {
	raw := GetEnv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

// GetEnvDuration accepts Go duration strings ("90s") or a bare number of seconds.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(GetEnv(key))
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}

func CreateFolder(folderPath string) error {
	if err := os.MkdirAll(folderPath, 0o755); err != nil {
		return fmt.Errorf("create folder %s: %w", folderPath, err)
	}
	return nil
}

// UniqueName returns prefix-<uuid>, used for per-request temp files so that
// concurrent requests never share a path.
func UniqueName(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
