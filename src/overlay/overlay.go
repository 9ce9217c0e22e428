// Package overlay implements the interactive region picker: a fullscreen
// click-and-drag rubber band over the desktop.
package overlay

import (
	"context"

	"im2any/src/screenshot"
)

// Selector runs one interactive selection. Exactly one selection can be on
// screen at a time; the event loop enforces that before calling Select.
//
// Select returns cancelled=true when the user dismissed the overlay (Escape,
// or releasing a selection too small to mean anything). err is reserved for
// window-system failures.
type Selector interface {
	Select(ctx context.Context) (region screenshot.Region, cancelled bool, err error)
}

// New returns the selector for the current platform.
func New() Selector {
	return newPlatformSelector()
}
