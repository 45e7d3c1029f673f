// Package stream turns a live chunk stream into progressively refined
// transcripts.
//
// A Coordinator accumulates 16 kHz samples and periodically re-decodes the
// unconfirmed tail of the buffer. Segments that have stopped changing are
// moved into confirmed text and the confirmation watermark advances past
// them, so later decodes only cover new audio. Decodes run in the
// background; results arrive on Updates.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/chaz8081/wisprwave/internal/observe"
	"github.com/chaz8081/wisprwave/internal/transcribe"
)

// Defaults for the decode policy.
const (
	DefaultDecodeInterval = time.Second
	DefaultMinUnconfirmed = time.Second
	DefaultReserve        = 2
)

// ErrFinished is returned by Finish when the session was already finished.
var ErrFinished = errors.New("stream: session already finished")

// Update is one transcript snapshot, or the error of a failed decode.
type Update struct {
	Text string
	Err  error
}

// Coordinator owns one session's audio buffer and confirmation state.
// Push and Finish may be called from different goroutines.
type Coordinator struct {
	engine         transcribe.Engine
	interval       time.Duration
	minUnconfirmed time.Duration
	reserve        int
	now            func() time.Time
	metrics        *observe.Metrics

	// At most one engine call in flight.
	inflight *semaphore.Weighted
	// Held from the end of a decode until its update is delivered, so
	// updates keep decode order once inflight is released.
	sendMu sync.Mutex

	mu         sync.Mutex
	ctx        context.Context
	buf        []float32
	watermark  float64
	confirmed  string
	pending    string
	lastDecode time.Time
	finished   bool
	updates    chan Update
	finishing  chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDecodeInterval sets the minimum wall-clock gap between decodes.
func WithDecodeInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.interval = d }
}

// WithMinUnconfirmed sets how much unconfirmed audio must accumulate before
// a decode is worth issuing.
func WithMinUnconfirmed(d time.Duration) Option {
	return func(c *Coordinator) { c.minUnconfirmed = d }
}

// WithReserve sets how many trailing segments stay unconfirmed after each
// decode. Values below zero are treated as zero.
func WithReserve(k int) Option {
	return func(c *Coordinator) { c.reserve = max(k, 0) }
}

// WithClock replaces time.Now for the throttle.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithMetrics records decode latency and confirmed words.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// New creates a coordinator for engine. Call Start before pushing audio.
func New(engine transcribe.Engine, opts ...Option) *Coordinator {
	c := &Coordinator{
		engine:         engine,
		interval:       DefaultDecodeInterval,
		minUnconfirmed: DefaultMinUnconfirmed,
		reserve:        DefaultReserve,
		now:            time.Now,
		inflight:       semaphore.NewWeighted(1),
	}
	for _, o := range opts {
		o(c)
	}
	c.reset(context.Background())
	c.finished = true
	return c
}

// Start begins a new session. Background decodes use ctx. Start must not be
// called while a previous session is still running; Finish it first.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset(ctx)
}

func (c *Coordinator) reset(ctx context.Context) {
	c.ctx = ctx
	c.buf = nil
	c.watermark = 0
	c.confirmed = ""
	c.pending = ""
	c.lastDecode = c.now()
	c.finished = false
	c.updates = make(chan Update, 4)
	c.finishing = make(chan struct{})
}

// Updates returns the snapshot channel of the current session. It is closed
// by Finish.
func (c *Coordinator) Updates() <-chan Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates
}

// Push appends a chunk and, if the decode policy allows it, starts a
// background decode. It never waits for the engine. The chunk is copied.
func (c *Coordinator) Push(chunk []float32) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.buf = append(c.buf, chunk...)
	if !c.dueLocked() || !c.inflight.TryAcquire(1) {
		c.mu.Unlock()
		return
	}
	// buf only grows, so the prefix handed to the engine is never rewritten.
	n := len(c.buf)
	samples := c.buf[:n:n]
	clip := c.watermark
	c.lastDecode = c.now()
	ctx, updates, finishing := c.ctx, c.updates, c.finishing
	c.mu.Unlock()

	go c.decode(ctx, samples, clip, updates, finishing)
}

// dueLocked reports whether both throttle conditions hold.
func (c *Coordinator) dueLocked() bool {
	if c.now().Sub(c.lastDecode) < c.interval {
		return false
	}
	unconfirmed := durationOf(len(c.buf)) - c.watermark
	return unconfirmed >= c.minUnconfirmed.Seconds()
}

func (c *Coordinator) decode(ctx context.Context, samples []float32, clip float64, updates chan<- Update, finishing <-chan struct{}) {
	start := time.Now()
	segs, err := c.engine.Transcribe(ctx, samples, clip)
	c.metrics.RecordDecode(ctx, observe.PhaseStream, time.Since(start), err)

	var u Update
	if err != nil {
		u.Err = fmt.Errorf("stream: decode: %w", err)
	} else {
		u.Text = c.apply(ctx, segs, durationOf(len(samples)))
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.inflight.Release(1)
	select {
	case updates <- u:
	case <-finishing:
	case <-ctx.Done():
	}
}

// apply folds one decode result into the confirmation state and returns the
// new snapshot.
func (c *Coordinator) apply(ctx context.Context, segs []transcribe.Segment, decoded float64) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	fresh := make([]transcribe.Segment, 0, len(segs))
	for _, s := range segs {
		if s.End > c.watermark {
			fresh = append(fresh, s)
		}
	}

	if len(fresh) <= c.reserve {
		c.pending = transcribe.JoinSegments(fresh)
		return c.snapshotLocked()
	}

	n := len(fresh) - c.reserve
	newly := transcribe.JoinSegments(fresh[:n])
	c.confirmed = joinText(c.confirmed, newly)
	c.pending = transcribe.JoinSegments(fresh[n:])
	c.metrics.RecordConfirmed(ctx, len(strings.Fields(newly)))

	if end := min(fresh[n-1].End, decoded); end > c.watermark {
		c.watermark = end
	}
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() string {
	return joinText(c.confirmed, c.pending)
}

// Finish waits for any in-flight decode, decodes the unconfirmed tail one
// last time and returns the full transcript. With no audio it returns ""
// without calling the engine. Updates is closed before Finish returns.
func (c *Coordinator) Finish(ctx context.Context) (string, error) {
	if err := c.stop(ctx); err != nil {
		return "", err
	}
	defer c.inflight.Release(1)

	c.mu.Lock()
	n := len(c.buf)
	samples := c.buf[:n:n]
	clip := c.watermark
	confirmed := c.confirmed
	c.mu.Unlock()

	if n == 0 || durationOf(n) <= clip {
		return confirmed, nil
	}

	start := time.Now()
	segs, err := c.engine.Transcribe(ctx, samples, clip)
	c.metrics.RecordDecode(ctx, observe.PhaseFinal, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("stream: final decode: %w", err)
	}

	tail := make([]transcribe.Segment, 0, len(segs))
	for _, s := range segs {
		if s.End > clip {
			tail = append(tail, s)
		}
	}
	return joinText(confirmed, transcribe.JoinSegments(tail)), nil
}

// Discard ends the session without a final decode. It waits for an
// in-flight decode so the engine is idle when it returns.
func (c *Coordinator) Discard(ctx context.Context) {
	if c.stop(ctx) == nil {
		c.inflight.Release(1)
	}
}

// stop marks the session finished, waits for the in-flight decode and
// closes Updates. On success the caller holds inflight.
func (c *Coordinator) stop(ctx context.Context) error {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return ErrFinished
	}
	c.finished = true
	close(c.finishing)
	updates := c.updates
	c.mu.Unlock()

	if err := c.inflight.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("stream: wait for decode: %w", err)
	}
	c.sendMu.Lock()
	close(updates)
	c.sendMu.Unlock()
	return nil
}

// Watermark returns the confirmation boundary in seconds.
func (c *Coordinator) Watermark() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watermark
}

// Confirmed returns the text that will not be revised.
func (c *Coordinator) Confirmed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed
}

// Pending returns the unconfirmed tail from the latest decode.
func (c *Coordinator) Pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Duration returns the buffered audio length in seconds.
func (c *Coordinator) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return durationOf(len(c.buf))
}

func durationOf(samples int) float64 {
	return float64(samples) / transcribe.SampleRate
}

func joinText(a, b string) string {
	return strings.TrimSpace(strings.TrimSpace(a) + " " + strings.TrimSpace(b))
}
