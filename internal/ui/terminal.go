package ui

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether ANSI colors should be written to stdout.
func ShouldUseColor() bool {
	return UseColorFor(os.Stdout)
}

// UseColorFor reports whether w should receive ANSI colors. AGORA_COLOR
// (always, never, auto) takes precedence over NO_COLOR, CLICOLOR_FORCE and
// CLICOLOR. In auto mode, only terminals get color.
func UseColorFor(w io.Writer) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("AGORA_COLOR"))) {
	case "always":
		return true
	case "never":
		return false
	}
	// https://no-color.org
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
