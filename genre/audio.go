package genre

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"genre-classifier/dsp"
	"genre-classifier/wav"

	"github.com/hajimehoshi/go-mp3"
)

const (
	// DefaultSampleRate is the analysis rate every clip is resampled to.
	DefaultSampleRate = 22050
	// DefaultMaxDuration is how much of each source is analysed.
	DefaultMaxDuration = 30 * time.Second
)

var ErrEmptyAudio = errors.New("audio contains no samples")

// LoadOptions controls decoding. Zero values take the defaults.
type LoadOptions struct {
	SampleRate  int
	MaxDuration time.Duration
	FFmpegPath  string
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.SampleRate <= 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = DefaultMaxDuration
	}
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	return o
}

// LoadClip decodes path, keeps the first MaxDuration of the source, mixes to
// mono and resamples to SampleRate. WAV and MP3 decode natively; anything
// else goes through ffmpeg.
func LoadClip(ctx context.Context, path string, opts LoadOptions) (Clip, error) {
	opts = opts.withDefaults()

	var (
		interleaved []float64
		channels    int
		rate        int
		err         error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		interleaved, channels, rate, err = decodeWav(path)
	case ".mp3":
		interleaved, channels, rate, err = decodeMP3(path, opts.MaxDuration)
	default:
		interleaved, channels, rate, err = decodeWithFFmpeg(ctx, opts.FFmpegPath, path)
	}
	if err != nil {
		return Clip{}, err
	}

	return clipFromInterleaved(interleaved, channels, rate, path, opts.SampleRate, opts.MaxDuration)
}

// DecodeClip turns an in-memory WAV into a mono clip at the target rate.
// Unlike LoadClip the full length is kept.
func DecodeClip(data []byte, source string, opts LoadOptions) (Clip, error) {
	opts = opts.withDefaults()
	info, err := wav.ParseWav(data)
	if err != nil {
		return Clip{}, fmt.Errorf("parse %s: %w", source, err)
	}
	return clipFromInterleaved(info.Samples, info.Channels, info.SampleRate, source, opts.SampleRate, 0)
}

// clipFromInterleaved truncates to maxDuration (when positive) at the native
// rate, then downmixes and resamples.
func clipFromInterleaved(interleaved []float64, channels, rate int, source string, targetRate int, maxDuration time.Duration) (Clip, error) {
	if channels <= 0 || rate <= 0 {
		return Clip{}, fmt.Errorf("%s: invalid stream (%d channels, %d Hz)", source, channels, rate)
	}

	if maxDuration > 0 {
		maxFrames := int(maxDuration.Seconds() * float64(rate))
		if frames := len(interleaved) / channels; frames > maxFrames {
			interleaved = interleaved[:maxFrames*channels]
		}
	}

	mono := wav.ToMono(interleaved, channels)
	if len(mono) == 0 {
		return Clip{}, fmt.Errorf("%s: %w", source, ErrEmptyAudio)
	}

	return Clip{
		Samples:    dsp.Resample(mono, rate, targetRate),
		SampleRate: targetRate,
		Source:     source,
	}, nil
}

func decodeWav(path string) ([]float64, int, int, error) {
	info, err := wav.ReadWavInfo(path)
	if err != nil {
		return nil, 0, 0, err
	}
	return info.Samples, info.Channels, info.SampleRate, nil
}

func decodeMP3(path string, maxDuration time.Duration) ([]float64, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open mp3: %w", err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode mp3 %s: %w", path, err)
	}

	// go-mp3 always emits 16-bit little-endian stereo.
	const channels, frameBytes = 2, 4
	limit := int64(maxDuration.Seconds()*float64(dec.SampleRate())) * frameBytes
	raw, err := io.ReadAll(io.LimitReader(dec, limit))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read mp3 %s: %w", path, err)
	}
	raw = raw[:len(raw)-len(raw)%frameBytes]

	samples, err := wav.WavBytesToSamples(raw)
	if err != nil {
		return nil, 0, 0, err
	}
	return samples, channels, dec.SampleRate(), nil
}

func decodeWithFFmpeg(ctx context.Context, ffmpegPath, path string) ([]float64, int, int, error) {
	converted, err := wav.ConvertToWAV(ctx, ffmpegPath, path, 1)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to convert audio: %w", err)
	}
	defer os.Remove(converted)
	return decodeWav(converted)
}
