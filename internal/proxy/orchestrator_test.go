package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeEventWriter struct {
	events []NormalizedEvent
}

func (w *fakeEventWriter) Write(e NormalizedEvent) error {
	w.events = append(w.events, e)
	return nil
}

func newTestOrchestrator(t *testing.T, openAIBase string) *Orchestrator {
	t.Helper()
	upstream, err := NewUpstreamClient(5*time.Second, 2*time.Second, 10)
	if err != nil {
		t.Fatalf("failed to build upstream client: %v", err)
	}
	t.Cleanup(upstream.Close)
	search := NewSearchCollaborator("", "", 5, 200, zap.NewNop())
	return NewOrchestrator(openAIBase, 1<<20, 2*time.Second, "--- FINAL ANSWER ---", upstream, search, zap.NewNop())
}

func TestOrchestrator_ValidateRejectsUnknownProvider(t *testing.T) {
	o := newTestOrchestrator(t, "https://api.openai.com")
	req := &CanonicalRequest{Provider: "bogus", Messages: []ApiMessage{{Role: "user", Content: "hi"}}}
	err := o.Validate(req)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if err.HTTPStatus() != http.StatusBadRequest {
		t.Fatalf("got status %d", err.HTTPStatus())
	}
}

func TestOrchestrator_ValidateRejectsEmptyMessages(t *testing.T) {
	o := newTestOrchestrator(t, "https://api.openai.com")
	req := &CanonicalRequest{Provider: ProviderOpenAI, Messages: []ApiMessage{{Role: "user", Content: ""}}}
	err := o.Validate(req)
	if err == nil {
		t.Fatalf("expected validation error for all-empty messages")
	}
}

func TestOrchestrator_ValidateRejectsWhenUpstreamUnavailable(t *testing.T) {
	o := NewOrchestrator("https://api.openai.com", 1<<20, time.Second, "---", nil, nil, zap.NewNop())
	req := &CanonicalRequest{Provider: ProviderOpenAI, Messages: []ApiMessage{{Role: "user", Content: "hi"}}}
	err := o.Validate(req)
	if err == nil || err.HTTPStatus() != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %+v", err)
	}
}

func TestOrchestrator_StreamSuccessEmitsContentAndFinish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	o := newTestOrchestrator(t, server.URL)
	req := &CanonicalRequest{
		Provider:   ProviderOpenAI,
		Model:      "gpt-4o",
		APIKey:     "sk-test",
		APIAddress: server.URL,
		Messages:   []ApiMessage{{Role: "user", Content: "hi"}},
	}
	if err := o.Validate(req); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	ew := &fakeEventWriter{}
	o.Stream(context.Background(), req, "req1", ew)

	var sawContent, sawFinish bool
	for _, e := range ew.events {
		if e.Type == EventContent && e.Text == "Hi" {
			sawContent = true
		}
		if e.Type == EventFinish {
			sawFinish = true
		}
	}
	if !sawContent {
		t.Fatalf("expected a content event, got %+v", ew.events)
	}
	if !sawFinish {
		t.Fatalf("expected a finish event, got %+v", ew.events)
	}
	if ew.events[len(ew.events)-1].Type != EventFinish {
		t.Fatalf("expected finish to be the last event, got %+v", ew.events[len(ew.events)-1])
	}
}

func TestOrchestrator_StreamUpstreamErrorEmitsErrorThenFinish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	}))
	defer server.Close()

	o := newTestOrchestrator(t, server.URL)
	req := &CanonicalRequest{
		Provider:   ProviderOpenAI,
		Model:      "gpt-4o",
		APIKey:     "bad-key",
		APIAddress: server.URL,
		Messages:   []ApiMessage{{Role: "user", Content: "hi"}},
	}
	if err := o.Validate(req); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	ew := &fakeEventWriter{}
	o.Stream(context.Background(), req, "req1", ew)

	if len(ew.events) != 2 {
		t.Fatalf("expected error+finish, got %+v", ew.events)
	}
	if ew.events[0].Type != EventError || ew.events[0].Message != "invalid api key" {
		t.Fatalf("got %+v", ew.events[0])
	}
	if ew.events[0].UpstreamStatus != http.StatusUnauthorized {
		t.Fatalf("got upstream status %d", ew.events[0].UpstreamStatus)
	}
	if ew.events[1].Type != EventFinish || ew.events[1].Reason != "upstream_error" {
		t.Fatalf("got %+v", ew.events[1])
	}
}

func TestOrchestrator_StreamWithoutSearchCredentialsSkipsStatusEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"},\"finish_reason\":\"stop\"}]}\n\n")
	}))
	defer server.Close()

	o := newTestOrchestrator(t, server.URL)
	req := &CanonicalRequest{
		Provider:     ProviderOpenAI,
		Model:        "gpt-4o",
		APIKey:       "sk-test",
		APIAddress:   server.URL,
		UseWebSearch: true,
		Messages:     []ApiMessage{{Role: "user", Content: "hi"}},
	}
	if err := o.Validate(req); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	ew := &fakeEventWriter{}
	o.Stream(context.Background(), req, "req1", ew)

	finishCount := 0
	for _, e := range ew.events {
		if e.Type == EventStatusUpdate || e.Type == EventWebSearchResults {
			t.Fatalf("expected no search events without credentials, got %+v", ew.events)
		}
		if e.Type == EventFinish {
			finishCount++
		}
	}
	// The upstream's own finish_reason must not be duplicated by the
	// pump's guaranteed-finish fallback.
	if finishCount != 1 {
		t.Fatalf("expected exactly one finish event, got %d: %+v", finishCount, ew.events)
	}
}
