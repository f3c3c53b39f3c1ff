package notify

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordingNotifier struct {
	sent []Notification
	err  error
}

func (r *recordingNotifier) Send(n Notification) error {
	r.sent = append(r.sent, n)
	return r.err
}

func TestRunFinished(t *testing.T) {
	tests := []struct {
		name      string
		errMsg    string
		wantKind  Kind
		wantTitle string
	}{
		{"success", "", KindSuccess, "Pipeline completed"},
		{"failure", "boom", KindError, "Pipeline failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := RunFinished("run-1", "My App", "https://github.com/x/y", tt.errMsg, 12)
			if n.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", n.Kind, tt.wantKind)
			}
			if n.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", n.Title, tt.wantTitle)
			}
			if tt.errMsg != "" && !strings.Contains(n.Message, tt.errMsg) {
				t.Errorf("failure message %q should carry the error verbatim", n.Message)
			}
		})
	}
}

func TestMulti_SendsToAll(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{err: errors.New("b failed")}
	m := NewMulti(a, b)

	err := m.Send(Notification{Title: "hi"})
	if err == nil {
		t.Error("expected error from failing notifier")
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Errorf("both notifiers should receive the message, got %d/%d", len(a.sent), len(b.sent))
	}
}

func TestSlack_Send(t *testing.T) {
	var got slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
	}))
	defer server.Close()

	s := NewSlack(server.URL)
	err := s.Send(RunFinished("run-1", "My App", "https://github.com/x/y", "", 30))
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if got.Text != "Pipeline completed" {
		t.Errorf("text = %q", got.Text)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Color != "good" {
		t.Errorf("attachments = %+v", got.Attachments)
	}
}

func TestSlack_DisabledWithoutURL(t *testing.T) {
	s := NewSlack("")
	if err := s.Send(Notification{Title: "x"}); err != nil {
		t.Errorf("disabled notifier should be a no-op, got %v", err)
	}
}
