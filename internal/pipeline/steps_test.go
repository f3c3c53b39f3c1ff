package pipeline

import (
	"testing"

	"github.com/ideaforge/ideaforge/internal/protocol"
)

func TestSteps_OrderAndWeights(t *testing.T) {
	steps := Steps()
	if len(steps) != 6 {
		t.Fatalf("Steps() returned %d steps, want 6", len(steps))
	}
	prev := -1
	for _, s := range steps {
		w, ok := Weight(s)
		if !ok {
			t.Fatalf("Weight(%q) unknown", s)
		}
		if w <= prev {
			t.Errorf("weights not strictly increasing: %q has %d after %d", s, w, prev)
		}
		prev = w
	}
	if w, _ := Weight(protocol.StepPipeline); w != 100 {
		t.Errorf("pipeline weight = %d, want 100", w)
	}
}

func TestProgressFor(t *testing.T) {
	tests := []struct {
		name   string
		step   protocol.Step
		status protocol.StepStatus
		want   int
		wantOK bool
	}{
		{"first step in progress floors at weight minus lag", protocol.StepEnhanceIdea, protocol.StatusInProgress, 6, true},
		{"first step completed", protocol.StepEnhanceIdea, protocol.StatusCompleted, 16, true},
		{"prd completed", protocol.StepGeneratePRD, protocol.StatusCompleted, 33, true},
		{"repo in progress", protocol.StepCreateRepo, protocol.StatusInProgress, 40, true},
		{"publish completed", protocol.StepPublish, protocol.StatusCompleted, 95, true},
		{"pipeline completed", protocol.StepPipeline, protocol.StatusCompleted, 100, true},
		{"failed step keeps weight", protocol.StepImplement, protocol.StatusFailed, 83, true},
		{"unknown step", protocol.Step("deploy"), protocol.StatusCompleted, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ProgressFor(tt.step, tt.status)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ProgressFor(%q, %q) = %d, want %d", tt.step, tt.status, got, tt.want)
			}
		})
	}
}

func TestProgressFor_NeverNegative(t *testing.T) {
	for _, s := range Steps() {
		if p, ok := ProgressFor(s, protocol.StatusInProgress); ok && p < 0 {
			t.Errorf("ProgressFor(%q, in_progress) = %d, negative", s, p)
		}
	}
}

func TestRunInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		input   RunInput
		wantErr error
	}{
		{"valid", RunInput{IdeaText: "a task tracker for small teams"}, nil},
		{"empty", RunInput{IdeaText: ""}, ErrEmptyIdea},
		{"whitespace only", RunInput{IdeaText: "   \n\t "}, ErrEmptyIdea},
		{"too short", RunInput{IdeaText: "todo app"}, ErrIdeaTooShort},
		{"bad username", RunInput{IdeaText: "a task tracker for small teams", GithubUser: "-bad-"}, ErrInvalidUsername},
		{"good username", RunInput{IdeaText: "a task tracker for small teams", GithubUser: "octo-cat"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
