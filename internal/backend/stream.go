package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/ideaforge/ideaforge/internal/protocol"
)

// Stream is a persistent server-push connection for one run. Events are
// delivered on Events() in arrival order; the channel is closed when the
// stream ends for any reason, after which Err reports why.
type Stream struct {
	events chan protocol.StepEvent

	cancel    context.CancelFunc
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// OpenStream subscribes to the step event stream for a run.
func (c *Client) OpenStream(ctx context.Context, runID string) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/run/"+runID+"/stream", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// No overall timeout: the stream stays open for the life of the run.
	// Disconnects surface as read errors.
	resp, err := (&http.Client{Transport: c.httpClient.Transport}).Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	s := &Stream{
		events: make(chan protocol.StepEvent, 16),
		cancel: cancel,
	}

	go func() {
		defer resp.Body.Close()
		defer close(s.events)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var data strings.Builder
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				// Blank line terminates one SSE message.
				if data.Len() > 0 {
					s.dispatch(ctx, data.String())
					data.Reset()
				}
			case strings.HasPrefix(line, "data:"):
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			default:
				// "event:" labels, comments and retry hints carry no payload.
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			s.setErr(fmt.Errorf("stream read: %w", err))
		}
	}()

	return s, nil
}

func (s *Stream) dispatch(ctx context.Context, payload string) {
	var ev protocol.StepEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Printf("stream: dropping malformed event: %v", err)
		return
	}
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// Events returns the channel of decoded step events. It is closed when the
// stream ends; check Err afterwards to distinguish a clean end from a
// transport failure.
func (s *Stream) Events() <-chan protocol.StepEvent {
	return s.events
}

// Err reports why the stream ended. Nil means the server closed it cleanly
// or Close was called.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Close tears down the connection. Safe to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(s.cancel)
}
