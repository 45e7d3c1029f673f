// Package whispercpp runs ggml whisper models through the whisper.cpp
// bindings.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/chaz8081/wisprwave/internal/transcribe"
)

// Engine runs a whisper.cpp model. The model is loaded once; every call
// gets a fresh context, so a failed call leaves nothing behind.
type Engine struct {
	model    whisper.Model
	language string
	threads  uint

	// whisper contexts share the model's compute buffers; one call at a time.
	mu sync.Mutex
}

var _ transcribe.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLanguage sets the spoken language ("en", "de", "auto", ...).
func WithLanguage(lang string) Option {
	return func(w *Engine) { w.language = lang }
}

// WithThreads sets the inference thread count. Zero keeps the library default.
func WithThreads(n uint) Option {
	return func(w *Engine) { w.threads = n }
}

// New loads a ggml model from modelPath. Call Close when done.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whispercpp: model path must not be empty")
	}
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: load model %q: %w", modelPath, err)
	}
	w := &Engine{model: model, language: "en"}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Close releases the model.
func (w *Engine) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model == nil {
		return nil
	}
	err := w.model.Close()
	w.model = nil
	return err
}

// Transcribe decodes samples starting at clipFrom seconds.
func (w *Engine) Transcribe(ctx context.Context, samples []float32, clipFrom float64) ([]transcribe.Segment, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", transcribe.ErrEngine, err)
	}
	if w.model == nil {
		return nil, fmt.Errorf("%w: model is closed", transcribe.ErrEngine)
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("%w: create context: %w", transcribe.ErrEngine, err)
	}
	if err := wctx.SetLanguage(w.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", w.language, "error", err)
	}
	if w.threads > 0 {
		wctx.SetThreads(w.threads)
	}
	if clipFrom > 0 {
		wctx.SetOffset(time.Duration(clipFrom * float64(time.Second)))
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("%w: process: %w", transcribe.ErrEngine, err)
	}

	var segs []transcribe.Segment
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: next segment: %w", transcribe.ErrEngine, err)
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" || isNonSpeech(text) {
			continue
		}
		segs = append(segs, transcribe.Segment{
			Text:  text,
			Start: seg.Start.Seconds(),
			End:   seg.End.Seconds(),
		})
	}
	return segs, nil
}

// isNonSpeech matches whisper's bracketed annotations such as [BLANK_AUDIO].
func isNonSpeech(text string) bool {
	return strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]")
}
