// Package transcribe defines the speech-to-text engine contract used by the
// dictation pipeline. The whisper.cpp implementation lives in whispercpp.
package transcribe

import (
	"context"
	"errors"
	"strings"
)

// SampleRate is the only input rate engines accept: mono float32 at 16 kHz.
const SampleRate = 16000

// ErrEngine wraps every failure reported by an Engine. A failed call must
// leave the engine usable for the next one.
var ErrEngine = errors.New("transcribe: engine failure")

// Segment is a timed span of text from one decode call. Times are seconds
// from the start of the sample buffer, not from the clip offset.
type Segment struct {
	Text  string
	Start float64
	End   float64
}

// Engine converts 16 kHz mono samples to timed segments.
//
// clipFrom is an offset in seconds: audio before it has already been
// confirmed and must not produce segments. Segments are returned in start
// order. Implementations are not required to support concurrent calls.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, clipFrom float64) ([]Segment, error)
}

// JoinSegments joins segment texts with single spaces, trimming each.
func JoinSegments(segs []Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
