// Package display holds the output sinks. A sink draws visualization frames
// and exposes the power surface the sleep orchestrator drives.
package display

import (
	"errors"

	"oledviz/internal/viz"
)

// ErrClosed is returned by Render when the user closed the device's window.
var ErrClosed = errors.New("display closed")

// Sink is one output device.
type Sink interface {
	// Render draws a frame. A powered-down sink drops frames silently.
	Render(frame viz.Frame) error
	// SetPower turns the device on or off.
	SetPower(on bool) error
	// Clear blanks the device.
	Clear() error
	// Close releases the device.
	Close() error
	Name() string
}
