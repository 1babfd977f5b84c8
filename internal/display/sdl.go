//go:build sdl

package display

import (
	"github.com/veandco/go-sdl2/sdl"

	"oledviz/internal/analyzer"
	"oledviz/internal/viz"
)

// SDL draws frames into a window. Built only with -tags sdl.
type SDL struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	powered  bool
	width    int32
	height   int32
	title    string
}

// NewSDL opens the window.
func NewSDL(title string, width, height int) (*SDL, error) {
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return nil, err
	}
	window, err := sdl.CreateWindow(
		title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(width), int32(height),
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		return nil, err
	}
	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		window.Destroy()
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		return nil, err
	}
	return &SDL{
		window:   window,
		renderer: renderer,
		powered:  true,
		width:    int32(width),
		height:   int32(height),
	}, nil
}

func (s *SDL) Name() string { return "sdl" }

func (s *SDL) SetPower(on bool) error {
	if s.powered == on {
		return nil
	}
	s.powered = on
	if !on {
		return s.Clear()
	}
	return nil
}

func (s *SDL) Clear() error {
	if err := s.renderer.SetDrawColor(0, 0, 0, 255); err != nil {
		return err
	}
	if err := s.renderer.Clear(); err != nil {
		return err
	}
	s.renderer.Present()
	return nil
}

func (s *SDL) Close() error {
	if s.renderer != nil {
		s.renderer.Destroy()
		s.renderer = nil
	}
	if s.window != nil {
		s.window.Destroy()
		s.window = nil
	}
	sdl.QuitSubSystem(sdl.INIT_VIDEO)
	return nil
}

func (s *SDL) Render(frame viz.Frame) error {
	if s.powered {
		if frame.TrackText != s.title {
			s.window.SetTitle(frame.TrackText)
			s.title = frame.TrackText
		}

		_ = s.renderer.SetDrawColor(0, 0, 0, 255)
		if err := s.renderer.Clear(); err != nil {
			return err
		}

		switch frame.Kind {
		case viz.SpectrumBars:
			s.drawSpectrum(frame)
		case viz.VUMeter:
			s.drawVU(frame)
		case viz.WaveformScope:
			s.drawWave(frame.WaveLeft, 0, s.height/2)
			s.drawWave(frame.WaveRight, s.height/2, s.height/2)
		case viz.StereoField:
			s.drawStereo(frame)
		}
		s.renderer.Present()
	}

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if _, ok := event.(*sdl.QuitEvent); ok {
			return ErrClosed
		}
	}
	return nil
}

func (s *SDL) drawSpectrum(frame viz.Frame) {
	cols := int32(analyzer.NumBands)
	colW := s.width / (2*cols + 1)
	for b := int32(0); b < cols; b++ {
		s.drawColumn(colW/2+b*colW, colW-2, frame.SpectrumLeft[b], frame.PeakLeft[b])
		s.drawColumn(s.width/2+colW/2+b*colW, colW-2, frame.SpectrumRight[b], frame.PeakRight[b])
	}
}

// drawColumn draws one vertical bar with a peak tick, level in [0,255].
func (s *SDL) drawColumn(x, w int32, level, peak int) {
	h := int32(level) * s.height / 255
	_ = s.renderer.SetDrawColor(0, 200, 255, 255)
	_ = s.renderer.FillRect(&sdl.Rect{X: x, Y: s.height - h, W: w, H: h})

	ph := int32(peak) * s.height / 255
	if ph > 0 {
		_ = s.renderer.SetDrawColor(255, 255, 255, 255)
		_ = s.renderer.FillRect(&sdl.Rect{X: x, Y: s.height - ph - 2, W: w, H: 2})
	}
}

func (s *SDL) drawVU(frame viz.Frame) {
	barH := s.height / 5
	_ = s.renderer.SetDrawColor(0, 255, 120, 255)
	lw := int32(frame.VULeft) * s.width / 255
	_ = s.renderer.FillRect(&sdl.Rect{X: 0, Y: barH, W: lw, H: barH})
	rw := int32(frame.VURight) * s.width / 255
	_ = s.renderer.FillRect(&sdl.Rect{X: 0, Y: 3 * barH, W: rw, H: barH})
}

func (s *SDL) drawWave(samples []float64, top, height int32) {
	if len(samples) < 2 {
		return
	}
	_ = s.renderer.SetDrawColor(0, 200, 255, 255)
	points := make([]sdl.Point, len(samples))
	for i, v := range samples {
		points[i] = sdl.Point{
			X: int32(i) * s.width / int32(len(samples)-1),
			Y: top + int32((1-v)/2*float64(height)),
		}
	}
	_ = s.renderer.DrawLines(points)
}

func (s *SDL) drawStereo(frame viz.Frame) {
	// correlation marker along a center line, -1 left to +1 right
	_ = s.renderer.SetDrawColor(80, 80, 80, 255)
	_ = s.renderer.FillRect(&sdl.Rect{X: 0, Y: s.height/2 - 1, W: s.width, H: 2})

	x := int32((frame.Correlation + 1) / 2 * float64(s.width-8))
	_ = s.renderer.SetDrawColor(255, 255, 255, 255)
	_ = s.renderer.FillRect(&sdl.Rect{X: x, Y: s.height/2 - 12, W: 8, H: 24})
}

// SupportsSDL reports whether this binary carries the SDL backend.
func SupportsSDL() bool { return true }
