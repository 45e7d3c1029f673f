// Package hotkey provides a global hotkey listener using gohook.
// It supports "hold" mode (press to start, release to stop) and
// "toggle" mode (each tap toggles).
package hotkey

import (
	"log/slog"
	"sync"

	hook "github.com/robotn/gohook"
)

// Modes.
const (
	ModeHold   = "hold"
	ModeToggle = "toggle"
)

// EventType indicates whether recording should start or stop.
type EventType int

const (
	// EventStart signals that the hotkey was activated (start recording).
	EventStart EventType = iota
	// EventStop signals that the hotkey was deactivated (stop recording).
	EventStop
	// EventToggle signals a tap in toggle mode: start if idle, stop if
	// recording.
	EventToggle
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	default:
		return "toggle"
	}
}

// Event is emitted on the channel returned by Events.
type Event struct {
	Type EventType
}

// Listener manages a global hotkey and emits start/stop events.
type Listener struct {
	keys []string
	ch   chan Event
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	tracker tracker
}

// NewListener creates a Listener for the given key combo and mode.
// keys should be lowercase key names (e.g., ["ctrl", "shift", "semicolon"]).
// Unknown modes fall back to hold.
func NewListener(keys []string, mode string) *Listener {
	return &Listener{
		keys:    keys,
		ch:      make(chan Event, 16),
		done:    make(chan struct{}),
		tracker: tracker{toggle: mode == ModeToggle},
	}
}

// Events returns the channel that receives hotkey events.
// The channel is closed when the listener stops.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Start begins listening for the global hotkey.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	hook.Register(hook.KeyDown, l.keys, func(hook.Event) {
		l.handle(true)
	})
	hook.Register(hook.KeyUp, l.keys, func(hook.Event) {
		l.handle(false)
	})

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

func (l *Listener) handle(down bool) {
	l.mu.Lock()
	var (
		ev Event
		ok bool
	)
	if down {
		ev, ok = l.tracker.keyDown()
	} else {
		ev, ok = l.tracker.keyUp()
	}
	l.mu.Unlock()
	if !ok {
		return
	}

	select {
	case l.ch <- ev:
	default:
		slog.Warn("[hotkey] event dropped, consumer is behind", "event", ev.Type)
	}
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
