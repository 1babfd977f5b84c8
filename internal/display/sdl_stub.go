//go:build !sdl

package display

import (
	"errors"

	"oledviz/internal/viz"
)

// SDL is unavailable without the sdl build tag.
type SDL struct{}

func NewSDL(title string, width, height int) (*SDL, error) {
	return nil, errors.New("SDL backend not enabled; rebuild with -tags sdl")
}

func (s *SDL) Name() string             { return "sdl" }
func (s *SDL) SetPower(on bool) error   { return nil }
func (s *SDL) Clear() error             { return nil }
func (s *SDL) Close() error             { return nil }
func (s *SDL) Render(f viz.Frame) error { return nil }

// SupportsSDL reports whether this binary carries the SDL backend.
func SupportsSDL() bool { return false }
