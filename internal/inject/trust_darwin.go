//go:build darwin

package inject

/*
#cgo darwin LDFLAGS: -framework ApplicationServices
#include <ApplicationServices/ApplicationServices.h>
*/
import "C"

// AccessibilityTrusted reports whether macOS lets this process post
// keystrokes to other applications (System Settings > Privacy & Security >
// Accessibility). It is checked before every injection because the user can
// revoke it at any time.
func AccessibilityTrusted() bool {
	return C.AXIsProcessTrusted() != 0
}
