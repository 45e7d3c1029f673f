// Package audio captures microphone input and turns it into 16 kHz mono
// chunks for the transcription pipeline.
package audio

import (
	"context"
	"errors"
)

// ErrCapture wraps any failure to open or start the capture device. It is
// fatal to the session that tried to start.
var ErrCapture = errors.New("audio: capture failed")

// ChunkSource produces resampled audio chunks for one recording session.
//
// Start returns a channel of 16 kHz mono chunks. The channel is closed only
// after Stop has been observed and every captured sample has been delivered;
// nothing is sent after it closes. Chunks must not be modified by receivers.
type ChunkSource interface {
	Start(ctx context.Context) (<-chan []float32, error)
	Stop()
}
