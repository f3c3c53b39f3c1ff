package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Slack posts run outcomes to a Slack incoming webhook.
type Slack struct {
	webhookURL string
	client     *http.Client
}

// NewSlack creates a Slack notifier. An empty webhook URL disables it.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color     string `json:"color"`
	Title     string `json:"title,omitempty"`
	TitleLink string `json:"title_link,omitempty"`
	Text      string `json:"text"`
	Footer    string `json:"footer,omitempty"`
}

func slackColor(k Kind) string {
	switch k {
	case KindSuccess:
		return "good"
	case KindError:
		return "danger"
	default:
		return "#439FE0"
	}
}

// Send posts the notification to the webhook.
func (s *Slack) Send(n Notification) error {
	if s.webhookURL == "" {
		return nil // Disabled
	}

	msg := slackMessage{
		Text: n.Title,
		Attachments: []slackAttachment{
			{
				Color:     slackColor(n.Kind),
				Title:     n.RunID,
				TitleLink: n.RepoURL,
				Text:      n.Message,
				Footer:    "ideaforge",
			},
		},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
