package display

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"

	"oledviz/internal/analyzer"
	"oledviz/internal/viz"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// Terminal draws frames as ANSI text. When attached to a real stdout it takes
// over the alternate screen; with an arbitrary writer (tests, pipes) it just
// emits plain frames.
type Terminal struct {
	out     io.Writer
	isTTY   bool
	powered bool
	width   int
	height  int

	buf strings.Builder
}

// NewTerminal creates a terminal sink. A nil writer means stdout with
// alternate-screen handling and live size probing.
func NewTerminal(out io.Writer) *Terminal {
	t := &Terminal{
		out:     out,
		powered: true,
		width:   defaultWidth,
		height:  defaultHeight,
	}
	if out == nil {
		t.out = os.Stdout
		t.isTTY = term.IsTerminal(int(os.Stdout.Fd()))
	}
	if t.isTTY {
		t.enterAltScreen()
		t.hideCursor()
	}
	return t
}

func (t *Terminal) Name() string { return "terminal" }

// SetPower blanks the screen when turning off; frames are dropped until the
// next power-on.
func (t *Terminal) SetPower(on bool) error {
	if t.powered == on {
		return nil
	}
	t.powered = on
	if !on {
		return t.Clear()
	}
	return nil
}

func (t *Terminal) Clear() error {
	if t.isTTY {
		_, err := io.WriteString(t.out, "\x1b[2J\x1b[H")
		return err
	}
	return nil
}

// Close restores the terminal state.
func (t *Terminal) Close() error {
	if t.isTTY {
		t.showCursor()
		t.exitAltScreen()
	}
	return nil
}

func (t *Terminal) Render(frame viz.Frame) error {
	if !t.powered {
		return nil
	}
	t.probeSize()

	t.buf.Reset()
	if t.isTTY {
		t.buf.WriteString("\x1b[H")
	}
	t.writeLine(frame.TrackText)

	switch frame.Kind {
	case viz.SpectrumBars:
		t.renderSpectrum(frame)
	case viz.VUMeter:
		t.renderVU(frame)
	case viz.WaveformScope:
		t.renderWaveform(frame)
	case viz.StereoField:
		t.renderStereo(frame)
	}

	t.writeLine(statusBar(frame.Name, t.width))
	_, err := io.WriteString(t.out, t.buf.String())
	return err
}

func (t *Terminal) renderSpectrum(frame viz.Frame) {
	barWidth := t.width/2 - 14
	if barWidth < 8 {
		barWidth = 8
	}
	for b := 0; b < analyzer.NumBands; b++ {
		band := analyzer.Bands()[b]
		t.writeLine(fmt.Sprintf("%5d L %s R %s",
			band.LowHz,
			bar(frame.SpectrumLeft[b], frame.PeakLeft[b], barWidth),
			bar(frame.SpectrumRight[b], frame.PeakRight[b], barWidth)))
	}
}

func (t *Terminal) renderVU(frame viz.Frame) {
	barWidth := t.width - 10
	if barWidth < 8 {
		barWidth = 8
	}
	t.writeLine("L " + bar(frame.VULeft, 0, barWidth) + fmt.Sprintf(" %3d", frame.VULeft))
	t.writeLine("R " + bar(frame.VURight, 0, barWidth) + fmt.Sprintf(" %3d", frame.VURight))
}

func (t *Terminal) renderWaveform(frame viz.Frame) {
	t.renderScopeRow("L", frame.WaveLeft)
	t.renderScopeRow("R", frame.WaveRight)
}

// renderScopeRow draws one channel as a fixed five-row scope.
func (t *Terminal) renderScopeRow(label string, samples []float64) {
	const rows = 5
	cols := t.width - 4
	if cols < 8 {
		cols = 8
	}
	grid := make([][]byte, rows)
	for r := range grid {
		grid[r] = []byte(strings.Repeat(" ", cols))
	}
	for c := 0; c < cols && len(samples) > 0; c++ {
		s := samples[c*len(samples)/cols]
		// sample in [-1,1] to row index, row 0 on top
		r := int((1 - s) / 2 * float64(rows))
		if r < 0 {
			r = 0
		}
		if r >= rows {
			r = rows - 1
		}
		grid[r][c] = '*'
	}
	for r, row := range grid {
		prefix := "  "
		if r == rows/2 {
			prefix = label + " "
		}
		t.writeLine(prefix + string(row))
	}
}

func (t *Terminal) renderStereo(frame viz.Frame) {
	t.writeLine(fmt.Sprintf("phase        %+0.2f", frame.Phase))
	t.writeLine(fmt.Sprintf("correlation  %+0.2f", frame.Correlation))

	// correlation meter, -1 on the left, +1 on the right
	width := t.width - 16
	if width < 9 {
		width = 9
	}
	pos := int(math.Round((frame.Correlation + 1) / 2 * float64(width-1)))
	meter := []byte(strings.Repeat("-", width))
	meter[width/2] = '+'
	if pos >= 0 && pos < width {
		meter[pos] = '|'
	}
	t.writeLine("  -1 " + string(meter) + " +1")
	t.writeLine(fmt.Sprintf("L %3d  R %3d", frame.VULeft, frame.VURight))
}

func (t *Terminal) writeLine(s string) {
	t.buf.WriteString(s)
	if t.isTTY {
		t.buf.WriteString("\x1b[K")
	}
	t.buf.WriteString("\n")
}

func (t *Terminal) probeSize() {
	if !t.isTTY {
		return
	}
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err == nil && w > 0 && h > 0 {
		t.width = w
		t.height = h
	}
}

func (t *Terminal) enterAltScreen() { io.WriteString(t.out, "\x1b[?1049h") }
func (t *Terminal) exitAltScreen()  { io.WriteString(t.out, "\x1b[?1049l\x1b[0m") }
func (t *Terminal) hideCursor()     { io.WriteString(t.out, "\x1b[?25l") }
func (t *Terminal) showCursor()     { io.WriteString(t.out, "\x1b[?25h") }

// bar renders a 0..255 level as a fixed-width bar with an optional peak tick.
func bar(level, peak, width int) string {
	fill := level * width / 255
	if fill > width {
		fill = width
	}
	b := []byte(strings.Repeat("#", fill) + strings.Repeat(" ", width-fill))
	if peak > 0 {
		p := peak * width / 255
		if p >= width {
			p = width - 1
		}
		if p >= fill {
			b[p] = '|'
		}
	}
	return "[" + string(b) + "]"
}

func statusBar(text string, width int) string {
	if width <= 0 {
		return text
	}
	if len(text) >= width {
		return text[:width]
	}
	return text + strings.Repeat(" ", width-len(text))
}
