// Package protocol defines the step event types the backend streams for a
// pipeline run. Events arrive over an SSE connection, one JSON object per
// message.
package protocol

import "github.com/ideaforge/ideaforge/internal/prd"

// Step identifies one pipeline stage.
type Step string

const (
	StepEnhanceIdea     Step = "enhance_idea"
	StepGeneratePRD     Step = "generate_prd"
	StepCreateRepo      Step = "create_repo"
	StepExtractFeatures Step = "extract_features"
	StepImplement       Step = "implement"
	StepPublish         Step = "publish"

	// StepPipeline is the synthetic terminal event. It is emitted exactly
	// once, last, and its status reflects the aggregate run outcome.
	StepPipeline Step = "pipeline"
)

// StepStatus is the lifecycle state of a single step.
type StepStatus string

const (
	StatusInProgress StepStatus = "in_progress"
	StatusCompleted  StepStatus = "completed"
	StatusFailed     StepStatus = "failed"
)

// StepEvent is one server-pushed progress notification. Within a run, events
// for a given step are monotonic: at most one in_progress followed by at most
// one terminal status.
type StepEvent struct {
	Step   Step       `json:"step"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
	Data   *EventData `json:"data,omitempty"`
}

// EventData carries the step-specific payload. All fields are optional;
// later non-zero values overwrite earlier ones for the same field.
type EventData struct {
	ProjectTitle  string            `json:"project_title,omitempty"`
	Description   string            `json:"description,omitempty"`
	EnhancedIdea  *prd.EnhancedIdea `json:"enhanced_idea,omitempty"`
	PRD           *prd.Document     `json:"prd,omitempty"`
	PRDMarkdown   string            `json:"prd_markdown,omitempty"`
	RepoURL       string            `json:"repo_url,omitempty"`
	RepoFullName  string            `json:"repo_full_name,omitempty"`
	EpicsCount    int               `json:"epics_count,omitempty"`
	FeaturesCount int               `json:"features_count,omitempty"`

	// Simulated marks content that was produced by the local fallback
	// builder instead of a live AI or GitHub call.
	Simulated bool `json:"simulated,omitempty"`
}

// Terminal reports whether the event carries a terminal step status.
func (e StepEvent) Terminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusFailed
}
