// Package wavfile persists recordings as 32-bit IEEE float WAV files.
package wavfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth          = 32
	formatIEEEFloat   = 3
	timestampLayout   = "2006-01-02_15-04-05"
	extension         = ".wav"
	maxCollisionTries = 1000
)

var ErrNotFloatWAV = errors.New("not a 32-bit float WAV file")

// Recording is a decoded WAV file.
type Recording struct {
	SampleRate int
	Channels   int
	Samples    []float32 // interleaved
}

// Frames returns the number of sample frames.
func (r Recording) Frames() int {
	if r.Channels == 0 {
		return 0
	}
	return len(r.Samples) / r.Channels
}

// Write stores interleaved samples at path, creating parent directories.
// A partially written file is removed on failure.
func Write(path string, channels int, sampleRate float64, samples []float32) (err error) {
	if channels < 1 {
		return fmt.Errorf("invalid channel count %d", channels)
	}
	rate := int(math.Round(sampleRate))
	if rate <= 0 {
		return fmt.Errorf("invalid sample rate %v", sampleRate)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	data := make([]int, len(samples))
	for i, s := range samples {
		// The encoder writes 32-bit words verbatim; carry the float bits.
		data[i] = int(int32(math.Float32bits(s)))
	}

	enc := wav.NewEncoder(f, rate, bitDepth, channels, formatIEEEFloat)
	if err := enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: rate, NumChannels: channels},
		SourceBitDepth: bitDepth,
	}); err != nil {
		return fmt.Errorf("failed to write to WAV encoder: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	return nil
}

// Read decodes a file written by Write.
func Read(path string) (Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return Recording{}, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return Recording{}, errors.New("invalid WAV file format")
	}
	if dec.WavAudioFormat != formatIEEEFloat || dec.BitDepth != bitDepth {
		return Recording{}, fmt.Errorf("%w: format %d, %d bits", ErrNotFloatWAV, dec.WavAudioFormat, dec.BitDepth)
	}
	if err := dec.FwdToPCM(); err != nil {
		return Recording{}, fmt.Errorf("failed to find PCM data: %w", err)
	}

	samples := make([]float32, dec.PCMLen()/4)
	if err := binary.Read(dec.PCMChunk, binary.LittleEndian, samples); err != nil {
		return Recording{}, fmt.Errorf("failed to read samples: %w", err)
	}

	return Recording{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Samples:    samples,
	}, nil
}

// Timestamp formats t in UTC as a sortable, filesystem-safe name.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Filename returns the file name for a recording taken at t.
func Filename(t time.Time) string {
	return Timestamp(t) + extension
}

// NextPath returns an unused path in dir for a recording taken at t. Later
// recordings within the same second get a numeric suffix.
func NextPath(dir string, t time.Time) (string, error) {
	base := Timestamp(t)
	path := filepath.Join(dir, base+extension)
	for n := 2; ; n++ {
		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", path, err)
		}
		if n > maxCollisionTries {
			return "", fmt.Errorf("no free file name for %s in %s", base, dir)
		}
		path = filepath.Join(dir, base+"_"+strconv.Itoa(n)+extension)
	}
}
