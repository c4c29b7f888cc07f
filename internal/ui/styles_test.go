package ui

import (
	"strings"
	"testing"

	"github.com/alfredjeanlab/agora/internal/model"
)

func TestRenderLabel(t *testing.T) {
	defer func() { noColor = false }()

	for _, tc := range []struct {
		label model.LabelValue
		want  string
	}{
		{model.LabelIn, "IN"},
		{model.LabelOut, "OUT"},
		{model.LabelUndec, "UNDEC"},
		{"", "UNDEC"},
	} {
		noColor = false
		got := RenderLabel(tc.label)
		if !strings.Contains(got, tc.want) || !strings.HasPrefix(got, "\x1b[38;5;") {
			t.Errorf("RenderLabel(%q) = %q", tc.label, got)
		}
		noColor = true
		if got := RenderLabel(tc.label); got != tc.want {
			t.Errorf("RenderLabel(%q) without color = %q, want %q", tc.label, got, tc.want)
		}
	}
}

func TestShouldUseColor(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"NoColor", map[string]string{"AGORA_COLOR": "", "NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, false},
		{"Forced", map[string]string{"AGORA_COLOR": "", "NO_COLOR": "", "CLICOLOR_FORCE": "1"}, true},
		{"Disabled", map[string]string{"AGORA_COLOR": "", "NO_COLOR": "", "CLICOLOR_FORCE": "", "CLICOLOR": "0"}, false},
		{"AgoraAlways", map[string]string{"AGORA_COLOR": "always", "NO_COLOR": "1"}, true},
		{"AgoraNever", map[string]string{"AGORA_COLOR": "never", "CLICOLOR_FORCE": "1"}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if got := ShouldUseColor(); got != tc.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestUseColorFor_NonFile(t *testing.T) {
	t.Setenv("AGORA_COLOR", "")
	t.Setenv("NO_COLOR", "")
	t.Setenv("CLICOLOR_FORCE", "")
	t.Setenv("CLICOLOR", "")
	var sb strings.Builder
	if UseColorFor(&sb) {
		t.Error("UseColorFor(strings.Builder) = true, want false")
	}
}
