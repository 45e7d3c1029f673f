package session

// State is the controller's position in the dictation lifecycle.
type State int

const (
	Idle State = iota
	Listening
	Processing
	Done
	Empty
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Processing:
		return "processing"
	case Done:
		return "done"
	case Empty:
		return "empty"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is a display state that reverts to Idle
// after the display interval.
func (s State) IsTerminal() bool {
	return s == Done || s == Empty || s == Error
}

// Busy reports whether a session owns the microphone or the engine.
func (s State) Busy() bool {
	return s == Listening || s == Processing
}

// Status is published on every state change and for informational messages
// that leave the state unchanged.
type Status struct {
	State State
	// Text is the live partial while Listening and the final transcript in
	// Done.
	Text string
	// Reason explains an Error.
	Reason string
	// Message is set when a press was refused.
	Message string
	// InjectErr is set in Done when the transcript could not be typed.
	InjectErr error
}
