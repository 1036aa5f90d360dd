package gate

import (
	"regexp"
	"strings"
)

// Function-word sets used by the stop-word heuristics. These are fixed
// constants, not configuration; the ratios computed from them are what the
// thresholds in GateConfig apply to.
var stopwordsEN = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "if": true, "of": true, "to": true, "in": true,
	"on": true, "at": true, "is": true, "are": true, "was": true,
	"it": true, "this": true, "that": true, "with": true, "for": true,
	"as": true, "by": true, "from": true, "not": true, "be": true,
	"have": true, "you": true, "we": true, "they": true, "what": true,
}

var stopwordsFR = map[string]bool{
	"le": true, "la": true, "les": true, "un": true, "une": true,
	"des": true, "de": true, "du": true, "et": true, "ou": true,
	"mais": true, "si": true, "est": true, "sont": true, "dans": true,
	"pour": true, "sur": true, "avec": true, "ce": true, "cette": true,
	"au": true, "aux": true, "ne": true, "pas": true, "que": true,
	"qui": true, "je": true, "il": true, "elle": true, "vous": true,
}

var tokenSplit = regexp.MustCompile(`[^\p{L}\p{N}']+`)

// transcriptStats summarizes one transcript for the heuristics.
type transcriptStats struct {
	Tokens  int
	EnRatio float64
	FrRatio float64
}

// Dominant returns the larger of the two stop-word ratios.
func (s transcriptStats) Dominant() float64 {
	if s.EnRatio >= s.FrRatio {
		return s.EnRatio
	}
	return s.FrRatio
}

func tokenize(text string) []string {
	fields := tokenSplit.Split(strings.ToLower(text), -1)
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func analyze(text string) transcriptStats {
	tokens := tokenize(text)
	stats := transcriptStats{Tokens: len(tokens)}
	if len(tokens) == 0 {
		return stats
	}
	var en, fr int
	for _, tok := range tokens {
		if stopwordsEN[tok] {
			en++
		}
		if stopwordsFR[tok] {
			fr++
		}
	}
	stats.EnRatio = float64(en) / float64(len(tokens))
	stats.FrRatio = float64(fr) / float64(len(tokens))
	return stats
}
