package pipeline

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// RunStatus is the lifecycle status stored on a RunRecord.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunPaused    RunStatus = "paused"
	RunSuccess   RunStatus = "success"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Validation and lifecycle errors surfaced synchronously to the caller.
var (
	ErrEmptyIdea       = errors.New("idea text is required")
	ErrIdeaTooShort    = errors.New("idea text is too short to be useful")
	ErrInvalidUsername = errors.New("invalid GitHub username format")
	ErrRunActive       = errors.New("a run is already active")
	ErrNotPaused       = errors.New("run is not paused for review")
)

// minIdeaLen is the practical minimum idea length.
const minIdeaLen = 10

// GitHub usernames: alphanumeric with single hyphens, at most 39 characters.
var githubUserRegex = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9]|-[a-zA-Z0-9]){0,38}$`)

// RunInput is the user-supplied input for one run. Immutable once the run
// starts.
type RunInput struct {
	IdeaText        string
	TechPreferences string
	Private         bool
	GithubToken     string
	GithubUser      string
	GeminiKey       string
}

// Validate rejects unusable input before any state transition or network
// call.
func (in RunInput) Validate() error {
	idea := strings.TrimSpace(in.IdeaText)
	if idea == "" {
		return ErrEmptyIdea
	}
	if len(idea) < minIdeaLen {
		return ErrIdeaTooShort
	}
	if in.GithubUser != "" && !githubUserRegex.MatchString(in.GithubUser) {
		return ErrInvalidUsername
	}
	return nil
}

// RunRecord is the accumulated outcome of one run attempt. It is owned and
// mutated exclusively by the Controller and appended to history exactly once,
// at a terminal state.
type RunRecord struct {
	ID            string
	CreatedAt     time.Time
	Status        RunStatus
	ProjectTitle  string
	Description   string
	EpicsCount    int
	FeaturesCount int
	RepoURL       string

	// ElapsedSeconds is computed once, at the terminal transition, and
	// never recomputed.
	ElapsedSeconds float64

	// Error holds the literal failure detail; set iff Status is failed.
	Error string

	// Degraded is true when any step substituted fallback content for a
	// live AI or GitHub call.
	Degraded bool
}

// Terminal reports whether the status is an end state.
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunFailed || s == RunCancelled
}
