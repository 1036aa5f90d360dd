package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cisco7507/LangId-mr/pkg/asr"
	"github.com/cisco7507/LangId-mr/pkg/audio"
	"github.com/cisco7507/LangId-mr/pkg/config"
	"github.com/cisco7507/LangId-mr/pkg/gate"
	"github.com/cisco7507/LangId-mr/pkg/log"
	"github.com/cisco7507/LangId-mr/pkg/metrics"
	"github.com/cisco7507/LangId-mr/pkg/storage"
	"github.com/cisco7507/LangId-mr/pkg/translate"
	"github.com/cisco7507/LangId-mr/pkg/types"
)

const snippetWords = 10

// Pipeline processes one claimed job end to end: decode, gate, snippet
// transcription, optional translation, result persistence.
type Pipeline struct {
	store      storage.Store
	decoder    audio.Decoder
	gate       *gate.Gate
	engine     asr.Engine
	translator translate.Translator
	cfg        *config.Config
	events     *metrics.Queue
	node       string
}

// NewPipeline wires a pipeline. translator may be nil when no translation
// endpoint is configured; jobs requesting translation then fail.
func NewPipeline(store storage.Store, decoder audio.Decoder, g *gate.Gate, engine asr.Engine, translator translate.Translator, cfg *config.Config, events *metrics.Queue, node string) *Pipeline {
	return &Pipeline{
		store:      store,
		decoder:    decoder,
		gate:       g,
		engine:     engine,
		translator: translator,
		cfg:        cfg,
		events:     events,
		node:       node,
	}
}

// Process runs the pipeline on a job the caller has already claimed.
func (p *Pipeline) Process(ctx context.Context, job *types.Job) {
	logger := log.WithJobID(job.ID)
	logger.Info().Str("file", job.OriginalFilename).Msg("processing job")

	p.events.Publish(metrics.Event{Type: metrics.EventJobRunningInc})
	metrics.JobsActiveInc(p.node)
	defer func() {
		p.events.Publish(metrics.Event{Type: metrics.EventJobRunningDec})
		metrics.JobsActiveDec(p.node)
	}()

	samples, err := p.decoder.DecodeMono16k(ctx, job.InputPath)
	if err != nil {
		if errors.Is(err, audio.ErrInvalidAudio) {
			// Corrupt input stays corrupt, retrying cannot help.
			p.failPermanent(job, fmt.Errorf("invalid_audio: %w", err))
			return
		}
		p.HandleFailure(job, fmt.Errorf("decode: %w", err))
		return
	}
	p.events.Publish(metrics.Event{Type: metrics.EventAudioSeconds, Seconds: audio.Duration(samples)})

	gateRes, err := p.gate.Evaluate(ctx, samples)
	if err != nil {
		if errors.Is(err, gate.ErrStrictReject) {
			p.failPermanent(job, err)
			return
		}
		p.HandleFailure(job, fmt.Errorf("gate: %w", err))
		return
	}
	p.events.Publish(metrics.Event{Type: metrics.EventGateDecision, Gate: gateRes})

	result := types.JobResult{
		Language:        gateRes.Language,
		Probability:     gateRes.Probability,
		GateDecision:    gateRes.Decision.String(),
		GateMeta:        gateRes.Meta,
		MusicOnly:       gateRes.MusicOnly,
		DetectionMethod: gateRes.Method,
	}

	if !gateRes.MusicOnly {
		snippet := audio.Window(samples, p.cfg.SnippetMaxSeconds)
		useVAD := gateRes.Probability == nil || *gateRes.Probability < p.cfg.Gate.LangDetectMinProb
		tr, err := p.engine.Transcribe(ctx, snippet, asr.TranscribeOptions{
			Language:  gateRes.Language,
			VadFilter: useVAD,
		})
		if err != nil {
			p.HandleFailure(job, fmt.Errorf("snippet transcription: %w", err))
			return
		}
		result.Text = truncateToWords(tr.Text, snippetWords)
		result.Raw = map[string]any{
			"text":     tr.Text,
			"language": tr.Language,
			"segments": len(tr.Segments),
			"vad_used": useVAD,
		}

		if err := p.store.UpdateJob(job.ID, storage.UpdateFields{Progress: storage.IntPtr(90)}); err != nil {
			p.HandleFailure(job, fmt.Errorf("progress update: %w", err))
			return
		}

		if job.TargetLang != "" && job.TargetLang != gateRes.Language {
			if p.translator == nil {
				p.HandleFailure(job, errors.New("translation requested but no translator configured"))
				return
			}
			translated, err := p.translator.Translate(ctx, tr.Text, gateRes.Language, job.TargetLang)
			if err != nil {
				p.HandleFailure(job, fmt.Errorf("translate: %w", err))
				return
			}
			result.Translated = true
			result.Result = translated
			result.TargetLang = job.TargetLang
			direction := "fr2en"
			if gateRes.Language == "en" {
				direction = "en2fr"
			}
			p.events.Publish(metrics.Event{Type: metrics.EventTranslate, Direction: direction})
		}
	}

	elapsed := time.Since(job.CreatedAt)
	result.ProcessingMS = elapsed.Milliseconds()

	payload, err := json.Marshal(result)
	if err != nil {
		p.HandleFailure(job, fmt.Errorf("marshal result: %w", err))
		return
	}

	err = p.store.UpdateJob(job.ID, storage.UpdateFields{
		Status:     storage.StatusPtr(types.JobStatusSucceeded),
		Progress:   storage.IntPtr(100),
		ResultJSON: storage.StringPtr(string(payload)),
	})
	if err != nil {
		p.HandleFailure(job, fmt.Errorf("persist result: %w", err))
		return
	}

	logger.Info().
		Str("language", result.Language).
		Str("gate_decision", result.GateDecision).
		Int64("processing_ms", result.ProcessingMS).
		Msg("job succeeded")
	p.events.Publish(metrics.Event{Type: metrics.EventJobFinished, Status: string(types.JobStatusSucceeded)})
	p.events.Publish(metrics.Event{Type: metrics.EventProcessingSeconds, Seconds: elapsed.Seconds()})
}

// HandleFailure applies the retry policy: requeue while attempts remain,
// otherwise fail terminally.
func (p *Pipeline) HandleFailure(job *types.Job, cause error) {
	attempts := job.Attempts + 1
	status := types.JobStatusQueued
	if attempts > p.cfg.MaxRetries {
		status = types.JobStatusFailed
	}
	log.WithJobID(job.ID).Warn().Err(cause).
		Int("attempts", attempts).
		Str("status", string(status)).
		Msg("job failed")

	err := p.store.UpdateJob(job.ID, storage.UpdateFields{
		Status:   storage.StatusPtr(status),
		Attempts: storage.IntPtr(attempts),
		Error:    storage.StringPtr(cause.Error()),
	})
	if err != nil {
		log.WithJobID(job.ID).Error().Err(err).Msg("failed to record job failure")
	}
	p.events.Publish(metrics.Event{Type: metrics.EventJobFinished, Status: string(types.JobStatusFailed)})
}

// failPermanent fails the job without consuming a retry.
func (p *Pipeline) failPermanent(job *types.Job, cause error) {
	log.WithJobID(job.ID).Warn().Err(cause).Msg("job failed permanently")
	err := p.store.UpdateJob(job.ID, storage.UpdateFields{
		Status: storage.StatusPtr(types.JobStatusFailed),
		Error:  storage.StringPtr(cause.Error()),
	})
	if err != nil {
		log.WithJobID(job.ID).Error().Err(err).Msg("failed to record job failure")
	}
	p.events.Publish(metrics.Event{Type: metrics.EventJobFinished, Status: string(types.JobStatusFailed)})
}

// truncateToWords keeps the first max whitespace-delimited tokens, marking
// truncation with a trailing ellipsis.
func truncateToWords(text string, max int) string {
	fields := strings.Fields(text)
	if len(fields) <= max {
		return strings.TrimSpace(text)
	}
	return strings.Join(fields[:max], " ") + " ..."
}
