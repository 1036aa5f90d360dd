// Package mock provides a scripted asr.Engine for tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/cisco7507/LangId-mr/pkg/asr"
)

// Call records the options one Transcribe invocation was made with.
type Call struct {
	NumSamples int
	Options    asr.TranscribeOptions
}

// Engine replays scripted results in order. When the script runs out it
// returns the last entry again, so pipelines with a variable number of
// transcriptions stay easy to script.
type Engine struct {
	mu      sync.Mutex
	script  []Step
	nextIdx int
	calls   []Call
}

// Step is one scripted Transcribe outcome.
type Step struct {
	Result *asr.Result
	Err    error
}

// New builds a scripted engine.
func New(steps ...Step) *Engine {
	return &Engine{script: steps}
}

// Text is a shorthand step: an autodetect result with the given language,
// probability and transcript.
func Text(lang string, prob float64, text string) Step {
	p := prob
	return Step{Result: &asr.Result{
		Text:                text,
		Language:            lang,
		LanguageProbability: &p,
		Segments:            []asr.Segment{{Text: text, AvgLogProb: -0.3}},
	}}
}

// Scored is a shorthand step for forced-language fallback runs: a result
// whose single segment carries the given average log probability.
func Scored(lang string, avgLogProb float64, text string) Step {
	return Step{Result: &asr.Result{
		Text:     text,
		Language: lang,
		Segments: []asr.Segment{{Text: text, AvgLogProb: avgLogProb}},
	}}
}

func (e *Engine) Transcribe(ctx context.Context, samples []float32, opts asr.TranscribeOptions) (*asr.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{NumSamples: len(samples), Options: opts})
	if len(e.script) == 0 {
		return nil, errors.New("mock: no scripted results")
	}
	idx := e.nextIdx
	if idx >= len(e.script) {
		idx = len(e.script) - 1
	} else {
		e.nextIdx++
	}
	step := e.script[idx]
	return step.Result, step.Err
}

func (e *Engine) Close() error { return nil }

// Calls returns the recorded invocations.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}
