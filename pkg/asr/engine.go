package asr

import (
	"context"
	"time"
)

// LanguageAuto asks the engine to detect the spoken language itself.
const LanguageAuto = "auto"

// TranscribeOptions control a single transcription run.
type TranscribeOptions struct {
	// Language forces transcription in a specific language, or LanguageAuto
	// to let the model detect it.
	Language string
	// VadFilter strips non-speech audio before inference.
	VadFilter bool
	// BeamSize sets the decoder beam width. Zero keeps the engine default.
	BeamSize int
}

// Segment is one decoded span of speech.
type Segment struct {
	Text       string
	AvgLogProb float64
	Start      time.Duration
	End        time.Duration
}

// Result is the outcome of a transcription run. LanguageProbability is nil
// when the engine cannot attach a confidence to the detected language.
type Result struct {
	Segments            []Segment
	Text                string
	Language            string
	LanguageProbability *float64
}

// Engine transcribes 16 kHz mono float32 PCM. Implementations must be safe
// for concurrent use; the worker pool calls Transcribe from several
// goroutines.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, opts TranscribeOptions) (*Result, error)
	Close() error
}
