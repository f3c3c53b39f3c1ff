package prd

import (
	"strings"
	"unicode/utf8"
)

const (
	maxFallbackTitle = 80
	minFallbackTitle = 5
)

// genericTitle is used when no usable title can be derived from the idea.
const genericTitle = "Application Project"

// BuildEnhancedIdea derives a structured product concept from a raw idea
// without any network calls. Deterministic given identical input and never
// fails.
func BuildEnhancedIdea(rawIdea, techPreferences string) EnhancedIdea {
	title := fallbackTitle(rawIdea)

	problem := truncateRunes(rawIdea, 200)

	stack := TechStack{
		Frontend:       []string{"React", "TypeScript"},
		Backend:        []string{"Python", "FastAPI"},
		Database:       []string{"PostgreSQL"},
		Infrastructure: []string{"Docker"},
	}
	if techPreferences != "" {
		stack.Infrastructure = append(stack.Infrastructure, techPreferences)
	}

	return EnhancedIdea{
		Title:            title,
		Description:      rawIdea,
		TargetUsers:      "End users who need the described functionality",
		ProblemStatement: "Users need: " + problem,
		KeyValueProps:    []string{"Solves the core need", "Modern architecture", "Production-ready"},
		TechStack:        stack,
	}
}

// fallbackTitle takes the first sentence or line of the idea, bounded at 80
// characters.
func fallbackTitle(rawIdea string) string {
	title := strings.TrimSpace(rawIdea)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	if i := strings.IndexByte(title, '.'); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimSpace(title)
	title = truncateRunes(title, maxFallbackTitle)
	if utf8.RuneCountInString(title) < minFallbackTitle {
		return genericTitle
	}
	return title
}

// truncateRunes bounds a string to n characters without splitting a
// multi-byte rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// FallbackDocument returns the canonical four-epic PRD skeleton,
// parameterized only by the enhanced idea's title. The template always
// contains exactly 5 features, so downstream counts are known in advance.
func FallbackDocument(idea EnhancedIdea) *Document {
	title := idea.Title
	if title == "" {
		title = genericTitle
	}

	return &Document{
		Overview: Overview{
			Vision:  "Build " + title,
			Goals:   []string{"Deliver core functionality", "Clean codebase", "Good documentation"},
			Metrics: []string{"All features implemented", "App runs without errors"},
		},
		Epics: []Epic{
			{
				Name:        "Project Foundation",
				Description: "Project structure and setup",
				Priority:    "P0",
				Stories: []UserStory{{
					Title:              "Project Setup",
					Story:              "As a developer, I want a structured project so I can develop efficiently",
					AcceptanceCriteria: []string{"Project structure follows best practices", "Dependencies installable"},
					Features: []Feature{
						{Name: "Scaffolding", Description: "Create project structure", Complexity: "S"},
					},
				}},
			},
			{
				Name:        "Core Features",
				Description: "Primary application functionality",
				Priority:    "P0",
				Stories: []UserStory{{
					Title:              "Core Logic",
					Story:              "As a user, I want the main features so I can accomplish my goals",
					AcceptanceCriteria: []string{"Core functionality works", "Error handling in place"},
					Features: []Feature{
						{Name: "Business logic", Description: "Main application features", Complexity: "L"},
						{Name: "UI", Description: "User-facing interface", Complexity: "M"},
					},
				}},
			},
			{
				Name:        "Data Layer",
				Description: "Data storage and access",
				Priority:    "P0",
				Stories: []UserStory{{
					Title:              "Data Persistence",
					Story:              "As a user, I want data to persist so I can access it later",
					AcceptanceCriteria: []string{"Data stored reliably", "CRUD operations work"},
					Features: []Feature{
						{Name: "Data access", Description: "Schema and repository layer", Complexity: "M"},
					},
				}},
			},
			{
				Name:        "Testing",
				Description: "Automated testing",
				Priority:    "P1",
				Stories: []UserStory{{
					Title:              "Automated Tests",
					Story:              "As a developer, I want tests so I can refactor safely",
					AcceptanceCriteria: []string{"Unit tests cover core logic", "Tests runnable with one command"},
					Features: []Feature{
						{Name: "Unit tests", Description: "Test core modules", Complexity: "M"},
					},
				}},
			},
		},
	}
}
