package prd

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestBuildEnhancedIdea_Title(t *testing.T) {
	tests := []struct {
		name      string
		idea      string
		wantTitle string
	}{
		{
			name:      "first sentence",
			idea:      "A habit tracker for climbers. It should sync offline.",
			wantTitle: "A habit tracker for climbers",
		},
		{
			name:      "first line",
			idea:      "Recipe sharing platform\nwith social features",
			wantTitle: "Recipe sharing platform",
		},
		{
			name:      "too short falls back to generic",
			idea:      "App",
			wantTitle: "Application Project",
		},
		{
			name:      "long title truncated",
			idea:      strings.Repeat("x", 200),
			wantTitle: strings.Repeat("x", 80),
		},
		{
			name:      "multi-byte title truncated on rune boundary",
			idea:      strings.Repeat("ü", 200),
			wantTitle: strings.Repeat("ü", 80),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildEnhancedIdea(tt.idea, "")
			if got.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", got.Title, tt.wantTitle)
			}
			if got.Description != tt.idea {
				t.Errorf("Description should carry the raw idea verbatim")
			}
		})
	}
}

func TestBuildEnhancedIdea_ProblemStatementKeepsRunesIntact(t *testing.T) {
	idea := strings.Repeat("日本語のアイデア ", 60)
	got := BuildEnhancedIdea(idea, "")
	if !utf8.ValidString(got.ProblemStatement) {
		t.Errorf("problem statement contains a split rune: %q", got.ProblemStatement)
	}
	body := strings.TrimPrefix(got.ProblemStatement, "Users need: ")
	if n := utf8.RuneCountInString(body); n != 200 {
		t.Errorf("problem statement body = %d runes, want 200", n)
	}
}

func TestBuildEnhancedIdea_Deterministic(t *testing.T) {
	a := BuildEnhancedIdea("A todo app with reminders", "Go, SQLite")
	b := BuildEnhancedIdea("A todo app with reminders", "Go, SQLite")
	if a.Title != b.Title || a.ProblemStatement != b.ProblemStatement {
		t.Error("BuildEnhancedIdea is not deterministic")
	}
	if len(a.TechStack.Frontend) == 0 || len(a.TechStack.Backend) == 0 {
		t.Error("tech stack should always be populated")
	}
}

func TestFallbackDocument_CanonicalShape(t *testing.T) {
	doc := FallbackDocument(BuildEnhancedIdea("A recipe sharing platform for home cooks", ""))

	if got := doc.EpicCount(); got != 4 {
		t.Errorf("EpicCount() = %d, want 4", got)
	}
	if got := doc.FeatureCount(); got != 5 {
		t.Errorf("FeatureCount() = %d, want 5", got)
	}
	if doc.Epics[0].Name != "Project Foundation" {
		t.Errorf("first epic = %q, want Project Foundation", doc.Epics[0].Name)
	}
	if !strings.Contains(doc.Overview.Vision, "A recipe sharing platform") {
		t.Errorf("vision should be parameterized by the idea title, got %q", doc.Overview.Vision)
	}
}

func TestFallbackDocument_EmptyTitle(t *testing.T) {
	doc := FallbackDocument(EnhancedIdea{})
	if doc.Overview.Vision != "Build Application Project" {
		t.Errorf("vision = %q", doc.Overview.Vision)
	}
}
