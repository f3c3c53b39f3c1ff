// Package notify delivers terminal-state run notifications to the desktop
// and to Slack.
package notify

import "fmt"

// Kind classifies a notification.
type Kind int

const (
	KindInfo Kind = iota
	KindSuccess
	KindError
)

// Notification describes one run outcome message.
type Notification struct {
	Title   string
	Message string
	Kind    Kind
	RunID   string
	RepoURL string // optional link to the generated repository
}

// Notifier is the interface for sending notifications.
type Notifier interface {
	Send(n Notification) error
}

// RunFinished builds the notification for a completed or failed run.
func RunFinished(runID, projectTitle, repoURL, errMsg string, elapsedSeconds float64) Notification {
	if errMsg != "" {
		return Notification{
			Title:   "Pipeline failed",
			Message: fmt.Sprintf("%s: %s", projectTitle, errMsg),
			Kind:    KindError,
			RunID:   runID,
		}
	}
	return Notification{
		Title:   "Pipeline completed",
		Message: fmt.Sprintf("%s finished in %.0fs", projectTitle, elapsedSeconds),
		Kind:    KindSuccess,
		RunID:   runID,
		RepoURL: repoURL,
	}
}

// Multi sends to multiple notifiers, returning the last error if any failed.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a notifier that fans out to all provided notifiers.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Send sends the notification to all notifiers.
func (m *Multi) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Noop does nothing (for tests or disabled notifications).
type Noop struct{}

func (Noop) Send(n Notification) error { return nil }
