package prd

import (
	"strings"
	"testing"
)

func TestSanitizeRepoName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple title", "My Cool App", "my-cool-app"},
		{"special characters", "Todo! App (v2)", "todo-app-v2"},
		{"collapses dashes", "a -- b", "a-b"},
		{"trims dashes", "--hello--", "hello"},
		{"empty input", "!!!", "generated-project"},
		{"truncates", strings.Repeat("a", 150), strings.Repeat("a", 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeRepoName(tt.in); got != tt.want {
				t.Errorf("SanitizeRepoName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRenderMarkdown(t *testing.T) {
	idea := BuildEnhancedIdea("A recipe sharing platform for home cooks", "")
	md := RenderMarkdown(FallbackDocument(idea), idea)

	for _, want := range []string{
		"# Product Requirements Document: A recipe sharing platform for home cooks",
		"### Epic 1: Project Foundation [P0]",
		"#### Story 1.1: Project Setup",
		"`[S]` **Scaffolding**",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}
