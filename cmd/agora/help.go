package main

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/agora/internal/model"
	"github.com/alfredjeanlab/agora/internal/ui"
	"github.com/spf13/cobra"
)

var (
	// "      --min-version uint   wait ..." : flag name, value type, rest.
	reFlagLine = regexp.MustCompile(`^(\s+(?:-\w, )?--[\w-]+)( [a-zA-Z]+)?(\s{2,}.*)?$`)
	reDefault  = regexp.MustCompile(`\(default [^)]*\)`)
	reLabel    = regexp.MustCompile(`\b(IN|OUT|UNDEC)\b`)
)

// helpFunc renders cobra's usage text, styled when the output is a
// color-capable terminal.
func helpFunc(cmd *cobra.Command, _ []string) {
	out := cmd.OutOrStdout()
	if !ui.UseColorFor(out) {
		_ = cmd.Usage()
		return
	}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	_ = cmd.Usage()
	cmd.SetOut(out)
	styleHelp(out, buf.String())
}

// styleHelp writes usage text to w one line at a time: section headers in
// the accent color, subcommand names highlighted, flag types and defaults
// muted, and label names in their label colors.
func styleHelp(w io.Writer, text string) {
	section := ""
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line != "" && line[0] != ' ' && strings.HasSuffix(line, ":"):
			section = line
			if section != "Usage:" {
				line = ui.RenderAccent(line)
			}
		case strings.HasPrefix(line, "  ") && !strings.HasPrefix(strings.TrimSpace(line), "-") && isCommandSection(section):
			name, rest, _ := strings.Cut(strings.TrimPrefix(line, "  "), " ")
			line = "  " + ui.RenderCommand(name) + " " + rest
		default:
			if m := reFlagLine.FindStringSubmatch(line); m != nil {
				line = m[1]
				if m[2] != "" {
					line += " " + ui.RenderMuted(strings.TrimSpace(m[2]))
				}
				line += reDefault.ReplaceAllStringFunc(m[3], ui.RenderMuted)
			}
		}
		line = reLabel.ReplaceAllStringFunc(line, func(s string) string {
			return ui.RenderLabel(model.LabelValue(s))
		})
		io.WriteString(w, line+"\n")
	}
}

// isCommandSection reports whether lines under header list subcommands.
// Group titles (e.g. "Dialogue:") and "Available Commands:" do; flag and
// example sections do not.
func isCommandSection(header string) bool {
	switch header {
	case "", "Usage:", "Aliases:", "Examples:", "Flags:", "Global Flags:":
		return false
	}
	return true
}
