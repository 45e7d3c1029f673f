package audio

import (
	"log/slog"
	"math"
	"sync"
)

// TargetSampleRate is the sample rate the transcription engine expects.
const TargetSampleRate = 16000

// decimatedRates are the native rates Resample reduces by an integer step.
// Anything else is passed through at its native rate.
var decimatedRates = map[uint32]bool{
	16000: true,
	32000: true,
	44100: true,
	48000: true,
	88200: true,
	96000: true,
}

var warnUnknownRate sync.Once

// Resample converts interleaved native-rate samples to mono at
// TargetSampleRate by keeping channel 0 and one frame out of every
// round(nativeRate/16000). 44.1 kHz therefore comes out at 14.7 kHz; the
// engine tolerates it and we trade accuracy for latency here.
//
// Unknown rates keep every frame of channel 0. A trailing partial frame is
// dropped. The input is never modified.
func Resample(samples []float32, nativeRate, channels uint32) []float32 {
	if len(samples) == 0 || channels == 0 {
		return []float32{}
	}

	frames := len(samples) / int(channels)
	step := decimationStep(nativeRate)

	out := make([]float32, 0, frames/step+1)
	for f := 0; f < frames; f += step {
		out = append(out, samples[f*int(channels)])
	}
	return out
}

// decimationStep returns how many native frames map to one output frame.
func decimationStep(nativeRate uint32) int {
	if !decimatedRates[nativeRate] {
		warnUnknownRate.Do(func() {
			slog.Warn("[audio] unsupported native sample rate, passing through undecimated",
				"rate", nativeRate, "target", TargetSampleRate)
		})
		return 1
	}
	step := int(math.Round(float64(nativeRate) / TargetSampleRate))
	if step < 1 {
		return 1
	}
	return step
}
