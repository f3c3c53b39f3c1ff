package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ideaforge/ideaforge/internal/protocol"
)

func sseHandler(t *testing.T, events []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/run/run-1/stream" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, ev := range events {
			fmt.Fprintf(w, "event: step\n")
			fmt.Fprintf(w, "data: %s\n\n", ev)
			flusher.Flush()
		}
	}
}

func TestStream_DeliversEventsInOrder(t *testing.T) {
	server := httptest.NewServer(sseHandler(t, []string{
		`{"step":"enhance_idea","status":"in_progress","detail":"Enhancing idea..."}`,
		`{"step":"enhance_idea","status":"completed"}`,
		`{"step":"pipeline","status":"completed"}`,
	}))
	defer server.Close()

	c := New(server.URL)
	stream, err := c.OpenStream(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("OpenStream() error: %v", err)
	}
	defer stream.Close()

	var got []protocol.StepEvent
	for ev := range stream.Events() {
		got = append(got, ev)
	}

	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if got[0].Step != protocol.StepEnhanceIdea || got[0].Status != protocol.StatusInProgress {
		t.Errorf("first event = %+v", got[0])
	}
	if got[0].Detail != "Enhancing idea..." {
		t.Errorf("detail = %q", got[0].Detail)
	}
	if got[2].Step != protocol.StepPipeline {
		t.Errorf("last event = %+v", got[2])
	}
	if stream.Err() != nil {
		t.Errorf("clean server close should not set Err, got %v", stream.Err())
	}
}

func TestStream_MalformedEventSkipped(t *testing.T) {
	server := httptest.NewServer(sseHandler(t, []string{
		`not json`,
		`{"step":"pipeline","status":"completed"}`,
	}))
	defer server.Close()

	c := New(server.URL)
	stream, err := c.OpenStream(context.Background(), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	var got []protocol.StepEvent
	for ev := range stream.Events() {
		got = append(got, ev)
	}
	if len(got) != 1 || got[0].Step != protocol.StepPipeline {
		t.Errorf("malformed event should be dropped, got %+v", got)
	}
}

func TestStream_CloseIsIdempotent(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-block
	}))
	defer server.Close()
	defer close(block)

	c := New(server.URL)
	stream, err := c.OpenStream(context.Background(), "run-1")
	if err != nil {
		t.Fatal(err)
	}

	stream.Close()
	stream.Close() // closing twice is safe

	select {
	case _, ok := <-stream.Events():
		if ok {
			t.Error("expected closed channel after Close")
		}
	case <-time.After(2 * time.Second):
		t.Error("events channel not closed after Close")
	}
}

func TestStream_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := New(server.URL)
	if _, err := c.OpenStream(context.Background(), "run-1"); err == nil {
		t.Fatal("expected error for 404 stream")
	}
}
