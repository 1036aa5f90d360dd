package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/cisco7507/LangId-mr/pkg/asr"
	"github.com/cisco7507/LangId-mr/pkg/audio"
	"github.com/cisco7507/LangId-mr/pkg/config"
	"github.com/cisco7507/LangId-mr/pkg/log"
	"github.com/cisco7507/LangId-mr/pkg/metrics"
	"github.com/cisco7507/LangId-mr/pkg/types"
)

// ErrStrictReject is returned when strict mode is on and the audio is
// neither confidently English nor confidently French.
var ErrStrictReject = errors.New("language not allowed or confidence too low")

// Gate runs the EN/FR decision tree over decoded audio. It is stateless and
// safe for concurrent use.
type Gate struct {
	engine       asr.Engine
	cfg          config.GateConfig
	probeSeconds int
	events       *metrics.Queue
}

// New builds a gate. events may be nil, in which case no accept/reject
// counters are published.
func New(engine asr.Engine, cfg config.GateConfig, probeSeconds int, events *metrics.Queue) *Gate {
	if probeSeconds <= 0 {
		probeSeconds = 30
	}
	return &Gate{engine: engine, cfg: cfg, probeSeconds: probeSeconds, events: events}
}

// Evaluate classifies the audio. The decision tree runs on a probe window of
// the first probeSeconds of audio:
//
//  1. transcribe the probe with language autodetect, no VAD
//  2. music-only check on the transcript
//  3. high-confidence accept
//  4. mid-zone stop-word heuristic
//  5. retry with the VAD filter, re-checking music-only
//  6. strict reject, or a forced-language scoring fallback
//
// In strict mode the terminal state returns ErrStrictReject. Transcription
// errors propagate unchanged so the caller can retry the job.
func (g *Gate) Evaluate(ctx context.Context, samples []float32) (*types.GateResult, error) {
	probe := audio.Window(samples, g.probeSeconds)

	base, err := g.engine.Transcribe(ctx, probe, asr.TranscribeOptions{Language: asr.LanguageAuto})
	if err != nil {
		return nil, fmt.Errorf("probe transcription: %w", err)
	}
	stats := analyze(base.Text)

	if isMusicOnly(base.Text) {
		return g.accept(g.musicOnlyResult(stats, false)), nil
	}

	lang := base.Language
	prob := base.LanguageProbability

	if g.cfg.AllowedLangs[lang] && prob != nil && *prob >= g.cfg.MidUpper &&
		stats.Tokens >= g.cfg.MinTokensSpeech && stats.Dominant() >= g.cfg.MinStopwordSpeech {
		return g.accept(&types.GateResult{
			Language:    lang,
			Probability: prob,
			Method:      types.MethodAutodetect,
			Decision:    types.GateHighConf,
			Meta:        g.meta(stats, false, false),
		}), nil
	}

	if prob != nil && *prob >= g.cfg.MidLower && *prob < g.cfg.MidUpper &&
		stats.Tokens >= g.cfg.MinTokens && (lang == "en" || lang == "fr") {
		if d, ok := g.midZone(lang, stats); ok {
			return g.accept(&types.GateResult{
				Language:    lang,
				Probability: prob,
				Method:      types.MethodAutodetect,
				Decision:    d,
				Meta:        g.meta(stats, true, false),
			}), nil
		}
	}

	// VAD retry. The probe may be dominated by music or noise that the
	// energy filter can strip.
	retried, err := g.engine.Transcribe(ctx, probe, asr.TranscribeOptions{
		Language:  asr.LanguageAuto,
		VadFilter: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vad retry transcription: %w", err)
	}
	vadStats := analyze(retried.Text)

	if isMusicOnly(retried.Text) {
		return g.accept(g.musicOnlyResult(vadStats, true)), nil
	}
	if g.cfg.AllowedLangs[retried.Language] && retried.LanguageProbability != nil &&
		*retried.LanguageProbability >= g.cfg.LangDetectMinProb {
		return g.accept(&types.GateResult{
			Language:    retried.Language,
			Probability: retried.LanguageProbability,
			Method:      types.MethodAutodetectVAD,
			Decision:    types.GateVadRetry,
			UseVAD:      true,
			Meta:        g.meta(vadStats, false, true),
		}), nil
	}

	// Terminal disposition: autodetect failed on both passes. Counted as a
	// reject whether strict mode aborts or the fallback forces a choice.
	g.publish(metrics.Event{Type: metrics.EventGateReject})

	if g.cfg.StrictReject {
		return nil, fmt.Errorf("%w: detected %q", ErrStrictReject, lang)
	}

	fb, err := g.scoringFallback(ctx, probe)
	if err != nil {
		return nil, err
	}
	fb.Meta = g.meta(vadStats, false, true)
	g.publish(metrics.Event{Type: metrics.EventFallbackUsed})
	return fb, nil
}

// scoringFallback forces a cheap transcription in each allowed language and
// picks the one the model found more probable. English wins ties.
func (g *Gate) scoringFallback(ctx context.Context, probe []float32) (*types.GateResult, error) {
	score := func(lang string) (float64, error) {
		res, err := g.engine.Transcribe(ctx, probe, asr.TranscribeOptions{
			Language:  lang,
			VadFilter: true,
			BeamSize:  1,
		})
		if err != nil {
			return 0, fmt.Errorf("fallback transcription (%s): %w", lang, err)
		}
		return asr.MeanAvgLogProb(res.Segments), nil
	}

	enScore, err := score("en")
	if err != nil {
		return nil, err
	}
	frScore, err := score("fr")
	if err != nil {
		return nil, err
	}

	lang := "en"
	if frScore > enScore {
		lang = "fr"
	}
	log.WithComponent("gate").Debug().
		Float64("en_score", enScore).
		Float64("fr_score", frScore).
		Str("language", lang).
		Msg("scoring fallback decided")

	return &types.GateResult{
		Language:    lang,
		Probability: nil,
		Method:      types.MethodFallback,
		Decision:    types.GateFallback,
		UseVAD:      true,
	}, nil
}

func (g *Gate) midZone(lang string, stats transcriptStats) (types.GateDecision, bool) {
	switch lang {
	case "en":
		if stats.EnRatio >= g.cfg.MinStopwordEn && stats.EnRatio > stats.FrRatio+g.cfg.StopwordMargin {
			return types.GateMidZoneEn, true
		}
	case "fr":
		if stats.FrRatio >= g.cfg.MinStopwordFr && stats.FrRatio > stats.EnRatio+g.cfg.StopwordMargin {
			return types.GateMidZoneFr, true
		}
	}
	return types.GateUnknown, false
}

func (g *Gate) musicOnlyResult(stats transcriptStats, vadUsed bool) *types.GateResult {
	method := types.MethodAutodetect
	if vadUsed {
		method = types.MethodAutodetectVAD
	}
	meta := g.meta(stats, false, vadUsed)
	meta.MusicOnly = true
	return &types.GateResult{
		Language:  "none",
		Method:    method,
		Decision:  types.GateMusicOnly,
		UseVAD:    vadUsed,
		MusicOnly: true,
		Meta:      meta,
	}
}

func (g *Gate) meta(stats transcriptStats, midZone, vadUsed bool) types.GateMeta {
	return types.GateMeta{
		MidZone:    midZone,
		EnRatio:    stats.EnRatio,
		FrRatio:    stats.FrRatio,
		TokenCount: stats.Tokens,
		VadUsed:    vadUsed,
		Config: types.GateConfigSnapshot{
			MidLower:          g.cfg.MidLower,
			MidUpper:          g.cfg.MidUpper,
			MinStopwordEn:     g.cfg.MinStopwordEn,
			MinStopwordFr:     g.cfg.MinStopwordFr,
			StopwordMargin:    g.cfg.StopwordMargin,
			MinTokens:         g.cfg.MinTokens,
			MinTokensSpeech:   g.cfg.MinTokensSpeech,
			MinStopwordSpeech: g.cfg.MinStopwordSpeech,
			LangDetectMinProb: g.cfg.LangDetectMinProb,
			StrictReject:      g.cfg.StrictReject,
		},
	}
}

// accept publishes the accept counter for non-fallback terminal paths and
// returns the result unchanged.
func (g *Gate) accept(res *types.GateResult) *types.GateResult {
	if res.Decision != types.GateMusicOnly {
		g.publish(metrics.Event{Type: metrics.EventGateAccept})
	}
	return res
}

func (g *Gate) publish(e metrics.Event) {
	if g.events != nil {
		g.events.Publish(e)
	}
}
