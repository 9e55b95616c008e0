package config

import (
	"fmt"
	"time"

	"genre-classifier/utils"

	"github.com/joho/godotenv"
)

// Config holds the interactive server settings, loaded from the environment.
type Config struct {
	// Server
	Port     string
	Protocol string
	CertFile string
	CertKey  string

	// Model artifact, loaded once at startup
	ModelPath string

	// Audio analysis; must match the settings the feature table was built with
	SampleRate  int
	NumMFCC     int
	MaxDuration time.Duration
	FFmpegPath  string

	// Transient files
	TempDir        string
	TempTTL        time.Duration
	MaxUploadBytes int64

	// YouTube acquisition
	YTDLPPath       string
	DownloadTimeout time.Duration
	ClipSeconds     int
}

// LoadDotEnv reads .env into the environment when present. Existing
// variables win.
func LoadDotEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	return Config{
		Port:     utils.GetEnv("PORT", "8501"),
		Protocol: utils.GetEnv("PROTOCOL", "http"),
		CertFile: utils.GetEnv("CERT_FILE", ""),
		CertKey:  utils.GetEnv("CERT_KEY", ""),

		ModelPath: utils.GetEnv("GENRE_MODEL_PATH", "model.json"),

		SampleRate:  utils.GetEnvInt("GENRE_SAMPLE_RATE", 22050),
		NumMFCC:     utils.GetEnvInt("GENRE_N_MFCC", 40),
		MaxDuration: utils.GetEnvDuration("GENRE_MAX_DURATION", 30*time.Second),
		FFmpegPath:  utils.GetEnv("FFMPEG_PATH", "ffmpeg"),

		TempDir:        utils.GetEnv("GENRE_TMP_DIR", "tmp"),
		TempTTL:        utils.GetEnvDuration("GENRE_TEMP_TTL", 10*time.Minute),
		MaxUploadBytes: int64(utils.GetEnvInt("GENRE_MAX_UPLOAD_MB", 64)) << 20,

		YTDLPPath:       utils.GetEnv("YTDLP_PATH", "yt-dlp"),
		DownloadTimeout: utils.GetEnvDuration("YTDLP_TIMEOUT", 120*time.Second),
		ClipSeconds:     utils.GetEnvInt("YTDLP_CLIP_SECONDS", 30),
	}
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.ModelPath == "":
		return fmt.Errorf("GENRE_MODEL_PATH must not be empty")
	case c.SampleRate <= 0:
		return fmt.Errorf("GENRE_SAMPLE_RATE must be positive, got %d", c.SampleRate)
	case c.NumMFCC <= 0:
		return fmt.Errorf("GENRE_N_MFCC must be positive, got %d", c.NumMFCC)
	case c.DownloadTimeout <= 0:
		return fmt.Errorf("YTDLP_TIMEOUT must be positive")
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("GENRE_MAX_UPLOAD_MB must be positive")
	case c.Protocol != "http" && c.Protocol != "https":
		return fmt.Errorf("PROTOCOL must be http or https, got %q", c.Protocol)
	case c.Protocol == "https" && (c.CertFile == "" || c.CertKey == ""):
		return fmt.Errorf("https requires CERT_FILE and CERT_KEY")
	}
	return nil
}
