package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

var (
	ErrNotWav            = errors.New("not a RIFF/WAVE file")
	ErrUnsupportedFormat = errors.New("unsupported wav encoding")
	ErrMissingChunk      = errors.New("wav file missing fmt or data chunk")
)

// WavInfo describes a decoded WAVE header plus its interleaved samples.
type WavInfo struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
	AudioFormat   int
	Samples       []float64
	Duration      float64
}

// Frames returns the number of per-channel sample frames.
func (w *WavInfo) Frames() int {
	if w.Channels <= 0 {
		return 0
	}
	return len(w.Samples) / w.Channels
}

// ReadWavInfo loads and decodes a WAVE file from disk.
func ReadWavInfo(filename string) (*WavInfo, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	defer f.Close()

	info, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return info, nil
}

// ParseWav decodes an in-memory WAVE file.
func ParseWav(data []byte) (*WavInfo, error) {
	return decode(bytes.NewReader(data))
}

func decode(r io.ReadSeeker) (*WavInfo, error) {
	d := gowav.NewDecoder(r)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotWav, err)
	}
	if d.NumChans == 0 {
		return nil, ErrMissingChunk
	}

	info := &WavInfo{
		Channels:      int(d.NumChans),
		SampleRate:    int(d.SampleRate),
		BitsPerSample: int(d.BitDepth),
		AudioFormat:   int(d.WavAudioFormat),
	}
	// The decoder drops the extensible sub-format GUID; read such files as integer PCM.
	if info.AudioFormat == formatExtensible {
		info.AudioFormat = formatPCM
	}
	if info.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, info.Channels, info.SampleRate)
	}
	if err := checkEncoding(info.AudioFormat, info.BitsPerSample); err != nil {
		return nil, err
	}
	if err := d.FwdToPCM(); err != nil || d.PCMChunk == nil {
		return nil, ErrMissingChunk
	}

	var err error
	if info.AudioFormat == formatIEEEFloat {
		info.Samples, err = decodeFloat(d, info.BitsPerSample)
	} else {
		info.Samples, err = decodeInt(d, info.BitsPerSample)
	}
	if err != nil {
		return nil, err
	}
	// Drop a trailing partial frame.
	info.Samples = info.Samples[:info.Frames()*info.Channels]
	info.Duration = float64(info.Frames()) / float64(info.SampleRate)
	return info, nil
}

func checkEncoding(format, bits int) error {
	switch {
	case format == formatPCM && (bits == 8 || bits == 16 || bits == 24 || bits == 32):
		return nil
	case format == formatIEEEFloat && (bits == 32 || bits == 64):
		return nil
	}
	return fmt.Errorf("%w: format %d, %d bits", ErrUnsupportedFormat, format, bits)
}

// decodeInt scales integer PCM by 2^(bits-1). 8-bit PCM is unsigned.
func decodeInt(d *gowav.Decoder, bits int) ([]float64, error) {
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}

	out := make([]float64, len(buf.Data))
	if bits == 8 {
		for i, v := range buf.Data {
			out[i] = float64(v-128) / 128.0
		}
		return out, nil
	}
	scale := float64(int64(1) << (bits - 1))
	for i, v := range buf.Data {
		out[i] = float64(v) / scale
	}
	return out, nil
}

// decodeFloat reads IEEE float payloads, which the go-audio decoder treats as integers.
func decodeFloat(d *gowav.Decoder, bits int) ([]float64, error) {
	raw, err := io.ReadAll(d.PCMChunk.R)
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}

	width := bits / 8
	out := make([]float64, len(raw)/width)
	for i := range out {
		if width == 4 {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:])))
		} else {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
		}
	}
	return out, nil
}

// WavBytesToSamples converts headerless little-endian 16-bit PCM into floats in [-1, 1).
func WavBytesToSamples(input []byte) ([]float64, error) {
	if len(input)%2 != 0 {
		return nil, errors.New("invalid input length")
	}

	samples := make([]float64, len(input)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(input[2*i:]))
		samples[i] = float64(v) / 32768.0
	}
	return samples, nil
}

// ToMono averages interleaved channels.
func ToMono(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// EncodeWav writes mono 16-bit PCM. Samples outside [-1, 1] are clipped.
func EncodeWav(w io.WriteSeeker, samples []float64, sampleRate int) error {
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(floatToPCM16(s))
	}

	enc := gowav.NewEncoder(w, sampleRate, 16, 1, formatPCM)
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

func floatToPCM16(s float64) int16 {
	v := math.Round(s * 32768.0)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// WriteWavFile writes samples as a mono 16-bit PCM file via a temp file and rename.
func WriteWavFile(filename string, samples []float64, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	tmp := filename + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := EncodeWav(f, samples, sampleRate); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close wav: %w", err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename wav: %w", err)
	}
	return nil
}
