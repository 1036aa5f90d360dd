package asr

import "math"

// Energy-gate voice activity filter. The bindings do not ship a VAD, so the
// gate's "retry with VAD" step uses this: drop frames whose RMS sits below a
// threshold derived from the clip's own noise floor, with one frame of
// padding around kept spans so word onsets survive.

const (
	vadFrameSamples = 480 // 30 ms at 16 kHz
	vadFloorRatio   = 1.8
	vadMinRMS       = 0.005
)

// FilterSpeech returns the samples with sustained low-energy frames removed.
// If fewer than two frames qualify as speech the input is returned unchanged
// so downstream inference still gets a chance.
func FilterSpeech(samples []float32) []float32 {
	n := len(samples) / vadFrameSamples
	if n < 3 {
		return samples
	}

	rms := make([]float64, n)
	floor := math.MaxFloat64
	for i := 0; i < n; i++ {
		frame := samples[i*vadFrameSamples : (i+1)*vadFrameSamples]
		rms[i] = frameRMS(frame)
		if rms[i] > 0 && rms[i] < floor {
			floor = rms[i]
		}
	}
	if floor == math.MaxFloat64 {
		return samples
	}

	threshold := floor * vadFloorRatio
	if threshold < vadMinRMS {
		threshold = vadMinRMS
	}

	keep := make([]bool, n)
	speechFrames := 0
	for i := 0; i < n; i++ {
		if rms[i] >= threshold {
			keep[i] = true
			speechFrames++
		}
	}
	if speechFrames < 2 {
		return samples
	}

	// Pad one frame on each side of every kept span.
	padded := make([]bool, n)
	for i := 0; i < n; i++ {
		if keep[i] {
			padded[i] = true
			if i > 0 {
				padded[i-1] = true
			}
			if i < n-1 {
				padded[i+1] = true
			}
		}
	}

	out := make([]float32, 0, speechFrames*vadFrameSamples)
	for i := 0; i < n; i++ {
		if padded[i] {
			out = append(out, samples[i*vadFrameSamples:(i+1)*vadFrameSamples]...)
		}
	}
	// Trailing partial frame rides along with the last kept frame.
	if padded[n-1] && len(samples) > n*vadFrameSamples {
		out = append(out, samples[n*vadFrameSamples:]...)
	}
	return out
}

func frameRMS(frame []float32) float64 {
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
