// The whisper.cpp static library (libwhisper.a) and headers must be
// available at link time via LIBRARY_PATH and C_INCLUDE_PATH.

package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/cisco7507/LangId-mr/pkg/log"
)

// WhisperEngine implements Engine on the whisper.cpp CGO bindings. The model
// is loaded once and shared; each Transcribe call creates its own context,
// which is how the bindings support concurrent inference.
type WhisperEngine struct {
	model whisperlib.Model
}

// NewWhisperEngine loads the model from modelPath.
func NewWhisperEngine(modelPath string) (*WhisperEngine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	log.WithComponent("asr").Info().Str("model", modelPath).Msg("whisper model loaded")
	return &WhisperEngine{model: model}, nil
}

// Close releases the model.
func (e *WhisperEngine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// Transcribe runs whisper.cpp over the samples. With opts.Language set to
// LanguageAuto the detected language is reported on the result; the language
// probability is estimated from mean token confidence because the bindings
// do not expose the detector's own probability.
func (e *WhisperEngine) Transcribe(ctx context.Context, samples []float32, opts TranscribeOptions) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.VadFilter {
		samples = FilterSpeech(samples)
	}
	if len(samples) == 0 {
		return &Result{Language: opts.Language}, nil
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := opts.Language
	if lang == "" {
		lang = LanguageAuto
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("whisper: set language %q: %w", lang, err)
	}
	if opts.BeamSize > 0 {
		wctx.SetBeamSize(opts.BeamSize)
	}
	wctx.SetTokenTimestamps(false)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	res := &Result{}
	var parts []string
	var probSum float64
	var probCount int
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		seg := Segment{
			Text:       text,
			AvgLogProb: segmentAvgLogProb(segment),
			Start:      segment.Start,
			End:        segment.End,
		}
		res.Segments = append(res.Segments, seg)
		if text != "" {
			parts = append(parts, text)
		}
		for _, tok := range segment.Tokens {
			probSum += float64(tok.P)
			probCount++
		}
	}
	res.Text = strings.Join(parts, " ")

	if lang == LanguageAuto {
		res.Language = wctx.DetectedLanguage()
		if probCount > 0 {
			p := probSum / float64(probCount)
			res.LanguageProbability = &p
		}
	} else {
		res.Language = lang
	}
	return res, nil
}

// segmentAvgLogProb is the mean natural log of token probabilities, the same
// per-segment confidence score the scoring fallback compares across forced
// languages. An empty segment scores the floor value.
func segmentAvgLogProb(segment whisperlib.Segment) float64 {
	if len(segment.Tokens) == 0 {
		return scoreFloor
	}
	var sum float64
	for _, tok := range segment.Tokens {
		p := float64(tok.P)
		if p < minTokenProb {
			p = minTokenProb
		}
		sum += math.Log(p)
	}
	return sum / float64(len(segment.Tokens))
}

const (
	scoreFloor   = -99.0
	minTokenProb = 1e-10
)

// MeanAvgLogProb averages the per-segment scores; no segments scores the
// floor so silent audio never wins a language comparison.
func MeanAvgLogProb(segments []Segment) float64 {
	if len(segments) == 0 {
		return scoreFloor
	}
	var sum float64
	for _, s := range segments {
		sum += s.AvgLogProb
	}
	return sum / float64(len(segments))
}
