// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/pdiddy/docbatch/pkg/types"
)

var (
	colorSuccess = lipgloss.Color("40")  // green
	colorFailed  = lipgloss.Color("196") // red
	colorMuted   = lipgloss.Color("244") // dim gray
	colorAccent  = lipgloss.Color("62")  // purple

	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess)
	styleFailed  = lipgloss.NewStyle().Foreground(colorFailed)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleHeader  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleSummary = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Padding(0, 1)
)

// statusView renders engine progress events and archive status lines. Styles
// are applied only when the output is a terminal.
type statusView struct {
	w      io.Writer
	styled bool
}

func newStatusView(f *os.File) *statusView {
	return &statusView{w: f, styled: term.IsTerminal(int(f.Fd()))}
}

func (v *statusView) paint(s lipgloss.Style, text string) string {
	if !v.styled {
		return text
	}
	return s.Render(text)
}

// Event writes one line (or the final summary block) for ev.
func (v *statusView) Event(ev types.ProgressEvent) {
	switch ev.Phase {
	case types.PhaseScanning, types.PhaseQuarantine, types.PhaseDispatching, types.PhaseReporting:
		fmt.Fprintln(v.w, v.paint(styleHeader, ev.Message))
	case types.PhaseFileDone:
		fmt.Fprintf(v.w, "%s %s\n", v.paint(styleMuted, counter(ev)), v.paint(styleSuccess, ev.File))
	case types.PhaseFileFailed:
		fmt.Fprintf(v.w, "%s %s: %s\n", v.paint(styleMuted, counter(ev)), v.paint(styleFailed, ev.File), ev.Err)
	case types.PhaseSetupFailed:
		fmt.Fprintf(v.w, "%s: %s\n", v.paint(styleFailed, ev.Message), ev.Err)
	case types.PhaseDone, types.PhaseInterrupted:
		if v.styled {
			fmt.Fprintln(v.w, styleSummary.Render(ev.Message))
		} else {
			fmt.Fprintln(v.w, ev.Message)
		}
	default:
		if ev.Message != "" {
			fmt.Fprintln(v.w, ev.Message)
		}
	}
}

// Status writes a free-form status line.
func (v *statusView) Status(msg string) {
	fmt.Fprintln(v.w, v.paint(styleMuted, msg))
}

func counter(ev types.ProgressEvent) string {
	done := ev.Converted + ev.Failed
	if ev.Failed > 0 {
		return fmt.Sprintf("[%d/%d, %d failed]", done, ev.Total, ev.Failed)
	}
	return fmt.Sprintf("[%d/%d]", done, ev.Total)
}
