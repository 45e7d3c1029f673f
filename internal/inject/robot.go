package inject

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/go-vgo/robotgo"
)

// Injection methods.
const (
	MethodPaste = "paste"
	MethodType  = "type"
)

// Robot posts keystrokes with robotgo.
//
// With MethodPaste, text goes through the clipboard and the previous
// clipboard contents are restored afterwards. MethodType simulates each
// keystroke; it is slower but leaves the clipboard alone.
type Robot struct {
	method       string
	restoreDelay time.Duration
	wordDelay    time.Duration
	trusted      func() bool

	// robotgo entry points, replaced in tests.
	keyTap   func(key string, mods ...any) error
	readClip func() (string, error)
	write    func(string) error
	typeStr  func(string)
}

var _ KeystrokeInjector = (*Robot)(nil)

// RobotOption configures a Robot.
type RobotOption func(*Robot)

// WithMethod selects MethodPaste or MethodType.
func WithMethod(method string) RobotOption {
	return func(r *Robot) { r.method = method }
}

// WithRestoreDelay sets how long the pasted text stays on the clipboard
// before the previous contents are put back.
func WithRestoreDelay(d time.Duration) RobotOption {
	return func(r *Robot) { r.restoreDelay = d }
}

// WithWordDelay sets the pause after each word deletion.
func WithWordDelay(d time.Duration) RobotOption {
	return func(r *Robot) { r.wordDelay = d }
}

// WithPermissionCheck installs a check run before every injection. When it
// returns false the injection fails with ErrPermissionDenied.
func WithPermissionCheck(trusted func() bool) RobotOption {
	return func(r *Robot) { r.trusted = trusted }
}

// NewRobot creates a Robot. The default method is paste.
func NewRobot(opts ...RobotOption) *Robot {
	r := &Robot{
		method:       MethodPaste,
		restoreDelay: 200 * time.Millisecond,
		wordDelay:    50 * time.Millisecond,
		keyTap: func(key string, mods ...any) error {
			return robotgo.KeyTap(key, mods...)
		},
		readClip: robotgo.ReadAll,
		write:    robotgo.WriteAll,
		typeStr:  func(s string) { robotgo.Type(s) },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// wordModifier is the modifier that turns backspace into delete-word.
func wordModifier() string {
	if runtime.GOOS == "darwin" {
		return "alt"
	}
	return "ctrl"
}

func pasteModifier() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}

func (r *Robot) checkPermission() error {
	if r.trusted != nil && !r.trusted() {
		return ErrPermissionDenied
	}
	return nil
}

// DeleteWord sends option+backspace (ctrl+backspace off macOS).
func (r *Robot) DeleteWord(ctx context.Context) error {
	if err := r.checkPermission(); err != nil {
		return err
	}
	if err := r.keyTap("backspace", wordModifier()); err != nil {
		return fmt.Errorf("inject: delete word: %w", err)
	}
	return sleep(ctx, r.wordDelay)
}

// PasteText inserts text using the configured method.
func (r *Robot) PasteText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if err := r.checkPermission(); err != nil {
		return err
	}
	if r.method == MethodType {
		r.typeStr(text)
		return nil
	}
	return r.paste(ctx, text)
}

func (r *Robot) paste(ctx context.Context, text string) error {
	prev, readErr := r.readClip()

	if err := r.write(text); err != nil {
		return fmt.Errorf("inject: write to clipboard: %w", err)
	}
	tapErr := r.keyTap("v", pasteModifier())

	// The target app reads the clipboard asynchronously; restoring too soon
	// would paste the old contents. Restore even if ctx is cancelled.
	_ = sleep(ctx, r.restoreDelay)
	if readErr == nil {
		if err := r.write(prev); err != nil {
			slog.Warn("[inject] failed to restore clipboard", "error", err)
		}
	}

	if tapErr != nil {
		return fmt.Errorf("inject: key tap paste: %w", tapErr)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
