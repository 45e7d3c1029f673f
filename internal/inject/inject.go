// Package inject types transcripts into the focused application.
//
// A KeystrokeInjector posts the raw keystrokes; Engine serializes edits
// through it so that keystrokes from different injections never interleave
// and the clipboard has a single owner.
package inject

import (
	"context"
	"errors"
)

// ErrPermissionDenied reports that the OS refused synthetic input, as
// opposed to a transient failure. Injectors must wrap it.
var ErrPermissionDenied = errors.New("inject: accessibility permission denied")

// KeystrokeInjector posts input events to the focused application. Calls
// return once the events have been posted.
type KeystrokeInjector interface {
	// DeleteWord deletes the word before the cursor.
	DeleteWord(ctx context.Context) error
	// PasteText inserts text at the cursor.
	PasteText(ctx context.Context, text string) error
}
