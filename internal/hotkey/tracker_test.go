package hotkey

import (
	"fmt"
	"testing"
)

func TestTracker(t *testing.T) {
	tests := []struct {
		name   string
		toggle bool
		keys   string // d = key-down, u = key-up
		want   []EventType
	}{
		{"hold press release", false, "du", []EventType{EventStart, EventStop}},
		{"hold autorepeat", false, "ddddu", []EventType{EventStart, EventStop}},
		{"hold two sessions", false, "dudu", []EventType{EventStart, EventStop, EventStart, EventStop}},
		{"hold stray release", false, "udu", []EventType{EventStart, EventStop}},
		{"toggle tap", true, "du", []EventType{EventToggle}},
		{"toggle two taps", true, "dudu", []EventType{EventToggle, EventToggle}},
		{"toggle three taps", true, "dududu", []EventType{EventToggle, EventToggle, EventToggle}},
		{"toggle autorepeat", true, "dddudddu", []EventType{EventToggle, EventToggle}},
		{"toggle stray release", true, "u", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := tracker{toggle: tt.toggle}
			var got []EventType
			for _, k := range tt.keys {
				var (
					ev Event
					ok bool
				)
				if k == 'd' {
					ev, ok = tr.keyDown()
				} else {
					ev, ok = tr.keyUp()
				}
				if ok {
					got = append(got, ev.Type)
				}
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("events = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewListenerMode(t *testing.T) {
	if l := NewListener([]string{"f9"}, ModeToggle); !l.tracker.toggle {
		t.Error("toggle mode not applied")
	}
	if l := NewListener([]string{"f9"}, "bogus"); l.tracker.toggle {
		t.Error("unknown mode should fall back to hold")
	}
}

func TestEventTypeString(t *testing.T) {
	for ev, want := range map[EventType]string{EventStart: "start", EventStop: "stop", EventToggle: "toggle"} {
		if got := ev.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(ev), got, want)
		}
	}
}

func TestStopIdempotent(t *testing.T) {
	l := NewListener([]string{"f9"}, ModeHold)
	l.Stop()
	l.Stop()
}
