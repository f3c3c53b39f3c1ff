// Package prd models the product requirements document produced by the
// generate_prd step: a product overview, ordered epics, user stories and
// features. It also provides the local fallback builders used when the
// backend or AI key is unavailable.
package prd

// EnhancedIdea is the structured product concept derived from a raw idea.
type EnhancedIdea struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	TargetUsers      string    `json:"target_users,omitempty"`
	ProblemStatement string    `json:"problem_statement,omitempty"`
	KeyValueProps    []string  `json:"key_value_props,omitempty"`
	TechStack        TechStack `json:"suggested_tech_stack"`
}

// TechStack is the suggested technology stack for the generated project.
type TechStack struct {
	Frontend       []string `json:"frontend"`
	Backend        []string `json:"backend"`
	Database       []string `json:"database"`
	Infrastructure []string `json:"infrastructure"`
}

// Document is a full PRD tree.
type Document struct {
	Overview Overview `json:"product_overview"`
	Epics    []Epic   `json:"epics"`
}

// Overview holds the product-level framing of a PRD.
type Overview struct {
	Vision  string   `json:"vision"`
	Goals   []string `json:"goals,omitempty"`
	Metrics []string `json:"success_metrics,omitempty"`
}

// Epic is one top-level slice of work.
type Epic struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Priority    string      `json:"priority"`
	Stories     []UserStory `json:"user_stories"`
}

// UserStory groups features under a user-facing narrative.
type UserStory struct {
	Title              string    `json:"title"`
	Story              string    `json:"story"`
	AcceptanceCriteria []string  `json:"acceptance_criteria,omitempty"`
	Features           []Feature `json:"features"`
}

// Feature is the smallest unit of work in a PRD.
type Feature struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Complexity  string `json:"complexity"` // S, M or L
}

// EpicCount returns the number of epics in the document.
func (d *Document) EpicCount() int {
	if d == nil {
		return 0
	}
	return len(d.Epics)
}

// FeatureCount returns the total number of features across all epics.
func (d *Document) FeatureCount() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, e := range d.Epics {
		for _, s := range e.Stories {
			n += len(s.Features)
		}
	}
	return n
}
