//go:build !darwin

package inject

// AccessibilityTrusted always reports true: only macOS gates synthetic input
// behind a per-process permission.
func AccessibilityTrusted() bool {
	return true
}
