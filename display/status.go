//go:build tinygo

// Package display renders machine status on an on-device memory LCD: a
// fixed status line (feed rate and position) plus a scrolling log
// of recent events, the way a panel-mount CNC controller shows its state
// without needing a host connected.
package display

import (
	"fmt"
	"image/color"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freemono"
	"tinygo.org/x/tinyterm"

	"github.com/grbl-go/stepcore/sharpmem"
	"github.com/grbl-go/stepcore/stepcore"
)

var statusTextColor = color.RGBA{0, 0, 0, 255}

// Source is the subset of stepcore.Control a Panel reads.
type Source interface {
	RealtimeRate() float32
	Position(axis stepcore.Axis) int32
}

// Panel drives a sharpmem.Device with a one-line status header, drawn
// directly with tinyfont at the top, and a scrolling event log drawn
// through a tinyterm.Terminal. The terminal covers the whole device, so
// the header and the log share the top rows.
type Panel struct {
	dev    *sharpmem.Device
	term   *tinyterm.Terminal
	source Source
	font   *tinyfont.Font
}

// NewPanel wraps dev, giving the whole device to the scrolling log.
// headerHeight is not used: no rows are reserved for the status line.
func NewPanel(dev *sharpmem.Device, source Source, headerHeight int16) *Panel {
	term := tinyterm.NewTerminal(dev)
	term.Configure(&tinyterm.Config{
		Font:       &freemono.Regular9pt7b,
		FontHeight: 12,
		FontOffset: 10,
	})

	return &Panel{dev: dev, term: term, source: source, font: &freemono.Regular9pt7b}
}

// Log appends a line to the scrolling event log (alarms, hold/resume,
// probe contact).
func (p *Panel) Log(line string) {
	fmt.Fprintln(p.term, line)
}

// RefreshStatus redraws the fixed status line and flushes the display.
// Call it on a slow cadence (a few Hz); it is never called from the ISR.
func (p *Panel) RefreshStatus() error {
	line := fmt.Sprintf("F%.0f X%d Y%d Z%d",
		p.source.RealtimeRate(),
		p.source.Position(stepcore.AxisX),
		p.source.Position(stepcore.AxisY),
		p.source.Position(stepcore.AxisZ),
	)
	tinyfont.WriteLine(p.dev, p.font, 0, 10, line, statusTextColor)
	return p.dev.Display()
}
