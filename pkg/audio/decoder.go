package audio

import (
	"context"
	"errors"
)

// ErrInvalidAudio marks input that cannot be decoded at all. Jobs failing
// with it are not retried; a corrupt upload stays corrupt.
var ErrInvalidAudio = errors.New("invalid audio")

// SampleRate is the fixed decode rate. Everything downstream (probe windows,
// snippet windows, duration math) assumes it.
const SampleRate = 16000

// Decoder turns an audio file into 16 kHz mono float32 PCM.
type Decoder interface {
	DecodeMono16k(ctx context.Context, path string) ([]float32, error)
}

// Duration returns the clip length represented by the samples.
func Duration(samples []float32) float64 {
	return float64(len(samples)) / SampleRate
}

// Window returns up to the first seconds of audio.
func Window(samples []float32, seconds int) []float32 {
	limit := seconds * SampleRate
	if len(samples) <= limit {
		return samples
	}
	return samples[:limit]
}
