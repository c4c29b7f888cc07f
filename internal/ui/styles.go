package ui

import (
	"fmt"

	"github.com/alfredjeanlab/agora/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorIn     = 114 // green
	colorOut    = 203 // red
	colorUndec  = 221 // yellow
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string {
	return render(colorAccent, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	return render(colorMuted, s)
}

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string {
	return render(colorCmd, s)
}

// RenderLabel returns the label name colored by acceptance status.
func RenderLabel(l model.LabelValue) string {
	switch l {
	case model.LabelIn:
		return render(colorIn, l.String())
	case model.LabelOut:
		return render(colorOut, l.String())
	}
	return render(colorUndec, model.LabelUndec.String())
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
