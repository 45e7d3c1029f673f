// Package session sequences one dictation at a time: capture, decode and
// injection, in either streaming (boost) or record-then-decode (legacy)
// mode.
//
// All session state is owned by the goroutine running Controller.Run, which
// consumes discrete events: hotkey press and release, audio chunks, decode
// updates, processing results and the display timer.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/wisprwave/internal/history"
	"github.com/chaz8081/wisprwave/internal/observe"
	"github.com/chaz8081/wisprwave/internal/stream"
	"github.com/chaz8081/wisprwave/internal/transcribe"
)

// Source produces 16 kHz mono chunks. The channel is closed after Stop and
// nothing is sent after it closes.
type Source interface {
	Start(ctx context.Context) (<-chan []float32, error)
	Stop()
}

// Injector applies transcripts to the focused application. It is satisfied
// by *inject.Engine.
type Injector interface {
	InjectFull(text string)
	InjectDiff(prev, next string)
	Reset()
	Flush(ctx context.Context) error
}

// History stores finished sessions. It is satisfied by *history.Store.
type History interface {
	Append(ctx context.Context, e history.Entry) (int64, error)
}

// Status messages for refused presses.
const (
	MsgDisabled       = "dictation is disabled"
	MsgModelNotLoaded = "model not loaded yet"
)

// Options configures a Controller. Start from DefaultOptions: a zero
// Reserve or MinUnconfirmed is honoured, only zero intervals are replaced
// by their defaults.
type Options struct {
	// Boost streams decodes while the key is held. Legacy overrides it.
	Boost  bool
	Legacy bool
	// Live types boost partials as they arrive instead of only the final
	// transcript.
	Live bool

	DecodeInterval time.Duration
	// MinUnconfirmed is the unconfirmed audio needed before a streaming
	// decode. Zero decodes on every interval.
	MinUnconfirmed time.Duration
	// Reserve is how many trailing segments stay unconfirmed. Zero confirms
	// every segment as soon as it is decoded.
	Reserve int

	// DisplayInterval is how long Done, Empty and Error stay up.
	DisplayInterval time.Duration
	// MinDuration is the shortest recording worth decoding.
	MinDuration time.Duration

	Metrics *observe.Metrics
	History History
}

// Mode returns "boost" or "legacy". Legacy wins when both are enabled.
func (o Options) Mode() string {
	if o.Boost && !o.Legacy {
		return "boost"
	}
	return "legacy"
}

// DefaultDisplayInterval is how long a finished session's status stays up.
const DefaultDisplayInterval = 1500 * time.Millisecond

// DefaultOptions returns boost mode with live injection and the default
// decode policy.
func DefaultOptions() Options {
	return Options{
		Boost:           true,
		Live:            true,
		DecodeInterval:  stream.DefaultDecodeInterval,
		MinUnconfirmed:  stream.DefaultMinUnconfirmed,
		Reserve:         stream.DefaultReserve,
		DisplayInterval: DefaultDisplayInterval,
	}
}

func (o Options) withDefaults() Options {
	if o.DisplayInterval <= 0 {
		o.DisplayInterval = DefaultDisplayInterval
	}
	if o.DecodeInterval <= 0 {
		o.DecodeInterval = stream.DefaultDecodeInterval
	}
	o.MinUnconfirmed = max(o.MinUnconfirmed, 0)
	o.Reserve = max(o.Reserve, 0)
	return o
}

type eventKind int

const (
	evPress eventKind = iota
	evRelease
	evToggle
)

// result is what a processing goroutine reports back to Run.
type result struct {
	text      string
	err       error
	injectErr error
	seconds   float64
}

// session is the per-dictation state owned by Run.
type session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	engine  transcribe.Engine
	boost   bool
	coord   *stream.Coordinator
	chunks  <-chan []float32
	updates <-chan stream.Update
	audio   []float32 // legacy only
	samples int
	typed   string // live boost: text submitted to the injector
	started time.Time
}

// Controller is the dictation state machine.
type Controller struct {
	source   Source
	injector Injector
	opts     Options

	events   chan eventKind
	statuses chan Status
	results  chan result

	mu      sync.Mutex
	engine  transcribe.Engine
	enabled bool
	state   State
}

// New creates a controller. It starts enabled with no engine; presses are
// refused until SetEngine is called.
func New(source Source, injector Injector, opts Options) *Controller {
	return &Controller{
		source:   source,
		injector: injector,
		opts:     opts.withDefaults(),
		events:   make(chan eventKind, 16),
		statuses: make(chan Status, 32),
		results:  make(chan result, 1),
		enabled:  true,
	}
}

// SetEngine installs the transcription engine. nil means no model is loaded.
func (c *Controller) SetEngine(e transcribe.Engine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine = e
}

// SetEnabled enables or disables new sessions. A running session finishes.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Statuses returns the status feed. Statuses are dropped if the reader
// falls behind.
func (c *Controller) Statuses() <-chan Status {
	return c.statuses
}

// Press signals hotkey-down.
func (c *Controller) Press() { c.post(evPress) }

// Release signals hotkey-up.
func (c *Controller) Release() { c.post(evRelease) }

// Toggle ends the session if one is listening and otherwise behaves like
// Press. It is the toggle-mode hotkey: the decision uses the controller's
// own state, so a refused or failed start does not invert the next tap.
func (c *Controller) Toggle() { c.post(evToggle) }

func (c *Controller) post(ev eventKind) {
	select {
	case c.events <- ev:
	default:
		slog.Warn("session: event queue full, dropping hotkey event")
	}
}

// Run drives the state machine until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	var (
		sess    *session
		display *time.Timer
		expire  <-chan time.Time
	)
	stopDisplay := func() {
		if display != nil {
			display.Stop()
			display, expire = nil, nil
		}
	}
	defer stopDisplay()

	// Nil channels disable their select cases when no session is active.
	chunks := func() <-chan []float32 {
		if sess == nil {
			return nil
		}
		return sess.chunks
	}
	updates := func() <-chan stream.Update {
		if sess == nil {
			return nil
		}
		return sess.updates
	}

	finish := func(r result) {
		c.conclude(ctx, sess, r)
		if sess != nil {
			sess.cancel()
		}
		sess = nil
		stopDisplay()
		display = time.NewTimer(c.opts.DisplayInterval)
		expire = display.C
	}

	for {
		select {
		case <-ctx.Done():
			if sess != nil {
				c.source.Stop()
				sess.cancel()
			}
			return nil

		case ev := <-c.events:
			if ev == evToggle {
				ev = evPress
				if c.State() == Listening {
					ev = evRelease
				}
			}
			switch ev {
			case evPress:
				if c.State().Busy() {
					slog.Debug("session: press ignored", "state", c.State())
					continue
				}
				engine, msg := c.admit()
				if msg != "" {
					c.publish(Status{State: c.State(), Message: msg})
					continue
				}
				stopDisplay()
				s, err := c.begin(ctx, engine)
				if err != nil {
					finish(result{err: err})
					continue
				}
				sess = s

			case evRelease:
				if c.State() != Listening {
					continue
				}
				c.source.Stop()
				// Partials after release are superseded by Finish.
				sess.updates = nil
				c.setState(Processing)
				c.publish(Status{State: Processing})
			}

		case chunk, ok := <-chunks():
			if !ok {
				sess.chunks = nil
				if c.State() == Listening {
					// The source ended on its own, e.g. the device went away.
					slog.Warn("session: audio stream ended before release")
					sess.updates = nil
					c.setState(Processing)
					c.publish(Status{State: Processing})
				}
				go func(s *session) { c.results <- c.process(s) }(sess)
				continue
			}
			sess.samples += len(chunk)
			if sess.boost {
				sess.coord.Push(chunk)
			} else {
				sess.audio = append(sess.audio, chunk...)
			}

		case u, ok := <-updates():
			if !ok {
				sess.updates = nil
				continue
			}
			if u.Err != nil {
				// The final decode decides the outcome; keep streaming.
				slog.Warn("session: streaming decode failed", "error", u.Err)
				continue
			}
			if c.opts.Live && u.Text != sess.typed {
				c.injector.InjectDiff(sess.typed, u.Text)
				sess.typed = u.Text
			}
			c.publish(Status{State: Listening, Text: u.Text})

		case r := <-c.results:
			finish(r)

		case <-expire:
			display, expire = nil, nil
			c.setState(Idle)
			c.publish(Status{State: Idle})
		}
	}
}

// admit returns the engine to use, or a message explaining the refusal.
func (c *Controller) admit() (transcribe.Engine, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return nil, MsgDisabled
	}
	if c.engine == nil {
		return nil, MsgModelNotLoaded
	}
	return c.engine, ""
}

func (c *Controller) begin(ctx context.Context, engine transcribe.Engine) (*session, error) {
	sctx, cancel := context.WithCancel(ctx)
	chunks, err := c.source.Start(sctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("session: start capture: %w", err)
	}

	s := &session{
		ctx:     sctx,
		cancel:  cancel,
		engine:  engine,
		boost:   c.opts.Mode() == "boost",
		chunks:  chunks,
		started: time.Now(),
	}
	if s.boost {
		s.coord = stream.New(engine,
			stream.WithDecodeInterval(c.opts.DecodeInterval),
			stream.WithMinUnconfirmed(c.opts.MinUnconfirmed),
			stream.WithReserve(c.opts.Reserve),
			stream.WithMetrics(c.opts.Metrics),
		)
		s.coord.Start(sctx)
		s.updates = s.coord.Updates()
	}

	slog.Info("session started", "mode", c.opts.Mode(), "live", s.boost && c.opts.Live)
	c.setState(Listening)
	c.publish(Status{State: Listening})
	return s, nil
}

// process runs after capture has fully stopped. It decodes, submits the
// injection and waits for it to be applied.
func (c *Controller) process(s *session) result {
	r := result{seconds: float64(s.samples) / transcribe.SampleRate}

	if s.samples == 0 || time.Duration(r.seconds*float64(time.Second)) < c.opts.MinDuration {
		if s.boost {
			s.coord.Discard(s.ctx)
		}
		return r
	}

	if s.boost {
		text, err := s.coord.Finish(s.ctx)
		if err != nil {
			c.injector.Reset()
			r.err = err
			return r
		}
		r.text = text
		if c.opts.Live {
			if text != s.typed {
				c.injector.InjectDiff(s.typed, text)
			}
		} else {
			c.injector.InjectFull(text)
		}
	} else {
		start := time.Now()
		segs, err := s.engine.Transcribe(s.ctx, s.audio, 0)
		c.opts.Metrics.RecordDecode(s.ctx, observe.PhaseLegacy, time.Since(start), err)
		if err != nil {
			r.err = fmt.Errorf("session: decode: %w", err)
			return r
		}
		r.text = transcribe.JoinSegments(segs)
		c.injector.InjectFull(r.text)
	}

	if r.text != "" || s.typed != "" {
		r.injectErr = c.injector.Flush(s.ctx)
	}
	return r
}

// conclude publishes the outcome of a session and records it.
func (c *Controller) conclude(ctx context.Context, s *session, r result) {
	st := Status{Text: r.text, InjectErr: r.injectErr}
	switch {
	case r.err != nil:
		st = Status{State: Error, Reason: r.err.Error()}
		slog.Error("session failed", "error", r.err)
	case r.text == "":
		st.State = Empty
		slog.Info("session produced no text", "audio_seconds", r.seconds)
	default:
		st.State = Done
		if r.injectErr != nil {
			slog.Warn("session: transcript not typed", "error", r.injectErr)
		}
		slog.Info("session done", "chars", len(r.text), "audio_seconds", r.seconds)
	}

	c.setState(st.State)
	c.publish(st)
	c.opts.Metrics.RecordSession(ctx, st.State.String())

	if c.opts.History == nil {
		return
	}
	e := history.Entry{
		Mode:         c.opts.Mode(),
		Outcome:      st.State.String(),
		Text:         r.text,
		AudioSeconds: r.seconds,
	}
	if s != nil {
		e.CreatedAt = s.started
	}
	if r.err != nil {
		e.Text = r.err.Error()
	}
	if _, err := c.opts.History.Append(ctx, e); err != nil {
		slog.Warn("session: failed to record history", "error", err)
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Controller) publish(st Status) {
	select {
	case c.statuses <- st:
	default:
		slog.Debug("session: status dropped", "state", st.State)
	}
}
