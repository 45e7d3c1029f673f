package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chaz8081/wisprwave/internal/observe"
)

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("inject: engine closed")

type jobKind int

const (
	jobFull jobKind = iota
	jobDiff
	jobBarrier
)

func (k jobKind) String() string {
	switch k {
	case jobFull:
		return "full"
	case jobDiff:
		return "diff"
	default:
		return "barrier"
	}
}

type job struct {
	kind jobKind
	prev string // diff: text currently on screen
	text string // full: text to paste; diff: text wanted on screen
	done chan struct{}
}

// Engine applies injections one at a time, in submission order, on a single
// worker goroutine. Submitting never blocks on the injector.
type Engine struct {
	injector KeystrokeInjector
	metrics  *observe.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}

	mu     sync.Mutex
	queue  []*job
	errs   []error
	closed bool

	// Worker only: a delete-only diff left the separator before the deleted
	// words on screen.
	sepOnScreen bool

	closeOnce sync.Once
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMetrics records one injections{kind,status} sample per job.
func WithMetrics(m *observe.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine starts the worker. Call Close to stop it.
func NewEngine(injector KeystrokeInjector, opts ...EngineOption) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		injector: injector,
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	go e.run()
	return e
}

// InjectFull drops every injection that has not started yet and pastes text.
// Text that is empty after trimming is ignored.
func (e *Engine) InjectFull(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.dropPendingLocked()
	e.enqueueLocked(&job{kind: jobFull, text: text})
}

// InjectDiff turns prev, the text already typed, into next with word
// deletions and one insertion. If the last queued injection has not started
// and ends in prev, the two are merged so the superseded edit is never typed.
func (e *Engine) InjectDiff(prev, next string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if n := len(e.queue); n > 0 {
		tail := e.queue[n-1]
		if (tail.kind == jobDiff || tail.kind == jobFull) && tail.text == prev {
			tail.text = next
			return
		}
	}
	e.enqueueLocked(&job{kind: jobDiff, prev: prev, text: next})
}

// Reset cancels every injection that has not started. An injection already
// posting keystrokes runs to completion.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropPendingLocked()
}

// Flush waits until everything submitted before it has been applied and
// returns the injection errors collected since the previous Flush.
func (e *Engine) Flush(ctx context.Context) error {
	b := &job{kind: jobBarrier, done: make(chan struct{})}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.enqueueLocked(b)
	e.mu.Unlock()

	select {
	case <-b.done:
	case <-e.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	err := errors.Join(e.errs...)
	e.errs = nil
	return err
}

// Close stops the worker, abandoning queued injections and interrupting the
// current one at its next wait.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.queue = nil
		e.mu.Unlock()
		e.cancel()
		<-e.done
	})
}

// dropPendingLocked removes queued edits but keeps Flush barriers, whose
// callers are waiting on them.
func (e *Engine) dropPendingLocked() {
	kept := e.queue[:0]
	for _, j := range e.queue {
		if j.kind == jobBarrier {
			kept = append(kept, j)
		}
	}
	clear(e.queue[len(kept):])
	e.queue = kept
}

func (e *Engine) enqueueLocked(j *job) {
	e.queue = append(e.queue, j)
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) run() {
	defer close(e.done)
	for {
		j, ok := e.next()
		if !ok {
			return
		}
		if j.kind == jobBarrier {
			close(j.done)
			continue
		}
		err := e.apply(j)
		e.metrics.RecordInjection(e.ctx, j.kind.String(), err)
		if err != nil {
			slog.Warn("[inject] injection failed", "kind", j.kind, "error", err)
			e.mu.Lock()
			e.errs = append(e.errs, err)
			e.mu.Unlock()
		}
	}
}

// next pops the oldest job, waiting for one if the queue is empty.
func (e *Engine) next() (*job, bool) {
	for {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return nil, false
		}
		if len(e.queue) > 0 {
			j := e.queue[0]
			e.queue[0] = nil
			e.queue = e.queue[1:]
			e.mu.Unlock()
			return j, true
		}
		e.mu.Unlock()

		select {
		case <-e.wake:
		case <-e.ctx.Done():
			return nil, false
		}
	}
}

func (e *Engine) apply(j *job) error {
	if j.kind == jobFull {
		e.sepOnScreen = false
		if err := e.injector.PasteText(e.ctx, j.text); err != nil {
			return fmt.Errorf("inject: paste transcript: %w", err)
		}
		return nil
	}

	edit := ComputeEdit(j.prev, j.text)
	if edit.IsZero() {
		return nil
	}
	sep := e.sepOnScreen
	e.sepOnScreen = false
	for i := range edit.DeleteWords {
		if err := e.injector.DeleteWord(e.ctx); err != nil {
			return fmt.Errorf("inject: delete word %d of %d: %w", i+1, edit.DeleteWords, err)
		}
	}
	insert := edit.Insert
	if edit.DeleteWords > 0 || sep {
		// Word deletion stops at the separator before the word, so it is
		// already on screen.
		insert = strings.TrimPrefix(insert, " ")
	}
	if insert == "" {
		e.sepOnScreen = edit.DeleteWords > 0 && len(strings.Fields(j.text)) > 0
		return nil
	}
	if err := e.injector.PasteText(e.ctx, insert); err != nil {
		return fmt.Errorf("inject: paste edit: %w", err)
	}
	return nil
}
