package hotkey

// tracker turns raw key-down/key-up callbacks into hotkey events.
// The OS repeats key-down while a combo is held; only the first one counts.
// In toggle mode each tap is reported as EventToggle; whether it starts or
// stops a recording is up to the consumer, which knows if one is running.
type tracker struct {
	toggle bool
	held   bool
}

func (t *tracker) keyDown() (Event, bool) {
	if t.held {
		return Event{}, false
	}
	t.held = true
	if t.toggle {
		return Event{}, false
	}
	return Event{Type: EventStart}, true
}

func (t *tracker) keyUp() (Event, bool) {
	if !t.held {
		return Event{}, false
	}
	t.held = false
	if !t.toggle {
		return Event{Type: EventStop}, true
	}
	return Event{Type: EventToggle}, true
}
