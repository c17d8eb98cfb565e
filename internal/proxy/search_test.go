package proxy

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestSearchCollaborator_UnavailableWithoutCredentials(t *testing.T) {
	s := NewSearchCollaborator("", "", 5, 200, zap.NewNop())
	if s.Available() {
		t.Fatalf("expected Available() false without credentials")
	}
	if got := s.Search(context.Background(), "query", "req1"); got != nil {
		t.Fatalf("expected nil results, got %+v", got)
	}
}

func TestSearchCollaborator_EmptyQueryReturnsNil(t *testing.T) {
	s := NewSearchCollaborator("key", "cx", 5, 200, zap.NewNop())
	if got := s.Search(context.Background(), "   ", "req1"); got != nil {
		t.Fatalf("expected nil results for blank query, got %+v", got)
	}
}

func TestSearchCollaborator_ClampsResultCount(t *testing.T) {
	s := NewSearchCollaborator("key", "cx", 50, 200, zap.NewNop())
	if s.resultCount != 10 {
		t.Fatalf("expected result count clamped to 10, got %d", s.resultCount)
	}

	s = NewSearchCollaborator("key", "cx", 0, 200, zap.NewNop())
	if s.resultCount != 5 {
		t.Fatalf("expected default result count of 5, got %d", s.resultCount)
	}
}

func TestTruncateSnippet(t *testing.T) {
	if got := truncateSnippet("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := truncateSnippet("this is long", 4); got != "this..." {
		t.Fatalf("got %q", got)
	}
}

func TestIsValidRealURL(t *testing.T) {
	cases := map[string]bool{
		"":                    false,
		"#":                   false,
		"https://example.com": true,
		"http://example.com":  true,
		"javascript:alert(1)": false,
	}
	for href, want := range cases {
		if got := isValidRealURL(href); got != want {
			t.Errorf("isValidRealURL(%q) = %v, want %v", href, got, want)
		}
	}
}
