package prd

import (
	"fmt"
	"strings"
)

// RenderMarkdown converts a PRD tree into a human-readable markdown
// document. Used for fallback PRDs and when the backend returns a tree
// without pre-rendered markdown.
func RenderMarkdown(doc *Document, idea EnhancedIdea) string {
	var b strings.Builder

	title := idea.Title
	if title == "" {
		title = genericTitle
	}
	fmt.Fprintf(&b, "# Product Requirements Document: %s\n\n", title)

	b.WriteString("## Product Overview\n\n")
	fmt.Fprintf(&b, "**Vision:** %s\n\n", doc.Overview.Vision)
	if idea.Description != "" {
		fmt.Fprintf(&b, "**Description:** %s\n\n", idea.Description)
	}

	if len(doc.Overview.Goals) > 0 {
		b.WriteString("### Goals\n")
		for _, g := range doc.Overview.Goals {
			fmt.Fprintf(&b, "- %s\n", g)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Epics & User Stories\n\n")
	for i, epic := range doc.Epics {
		prio := epic.Priority
		if prio == "" {
			prio = "P1"
		}
		fmt.Fprintf(&b, "### Epic %d: %s [%s]\n", i+1, epic.Name, prio)
		fmt.Fprintf(&b, "_%s_\n\n", epic.Description)
		for j, story := range epic.Stories {
			fmt.Fprintf(&b, "#### Story %d.%d: %s\n", i+1, j+1, story.Title)
			fmt.Fprintf(&b, "> %s\n\n", story.Story)
			if len(story.AcceptanceCriteria) > 0 {
				b.WriteString("**Acceptance Criteria:**\n")
				for _, ac := range story.AcceptanceCriteria {
					fmt.Fprintf(&b, "- [ ] %s\n", ac)
				}
				b.WriteString("\n")
			}
			b.WriteString("**Features:**\n")
			for _, f := range story.Features {
				cx := f.Complexity
				if cx == "" {
					cx = "M"
				}
				fmt.Fprintf(&b, "- `[%s]` **%s**: %s\n", cx, f.Name, f.Description)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("---\n*Generated by ideaforge*\n")
	return b.String()
}
