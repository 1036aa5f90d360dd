package asr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func tone(frames int, amplitude float64) []float32 {
	out := make([]float32, frames*vadFrameSamples)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(float64(i)*0.3))
	}
	return out
}

func TestFilterSpeechDropsSilence(t *testing.T) {
	var samples []float32
	samples = append(samples, tone(10, 0.0005)...) // near-silence
	speech := tone(10, 0.3)
	samples = append(samples, speech...)
	samples = append(samples, tone(10, 0.0005)...)

	out := FilterSpeech(samples)
	assert.Less(t, len(out), len(samples))
	assert.GreaterOrEqual(t, len(out), len(speech))
}

func TestFilterSpeechAllSpeechUnchangedLength(t *testing.T) {
	samples := tone(12, 0.4)
	out := FilterSpeech(samples)
	assert.Equal(t, len(samples), len(out))
}

func TestFilterSpeechShortInputPassthrough(t *testing.T) {
	samples := tone(2, 0.0001)
	out := FilterSpeech(samples)
	assert.Equal(t, len(samples), len(out))
}

func TestMeanAvgLogProb(t *testing.T) {
	segs := []Segment{{AvgLogProb: -0.2}, {AvgLogProb: -0.6}}
	assert.InDelta(t, -0.4, MeanAvgLogProb(segs), 1e-9)
	assert.Equal(t, -99.0, MeanAvgLogProb(nil))
}
