package proxy

import (
	"strings"
	"testing"
)

func sampleResults() []SearchResult {
	return []SearchResult{{Index: 1, Title: "Result", Href: "https://example.com", Snippet: "snippet text"}}
}

func TestInjectSearchContext_NonReasonerInsertsBeforeLastUserMessage(t *testing.T) {
	messages := []ApiMessage{
		{Role: "user", Content: "first"},
		{Role: "user", Content: "second"},
	}
	out := injectSearchContext(messages, sampleResults(), "gpt-4o")
	if len(out) != 3 || out[1].Role != "system" || out[2].Content != "second" {
		t.Fatalf("got %+v", out)
	}
}

func TestInjectSearchContext_ReasonerMergesIntoLeadingSystemMessageContextFirst(t *testing.T) {
	messages := []ApiMessage{
		{Role: "system", Content: "Be terse."},
		{Role: "user", Content: "hi"},
	}
	out := injectSearchContext(messages, sampleResults(), "o1-reasoner")
	if len(out) != 2 || out[0].Role != "system" {
		t.Fatalf("got %+v", out)
	}
	if !strings.HasPrefix(out[0].Content, "Web search results") {
		t.Fatalf("expected search context to lead the merged system message, got %q", out[0].Content)
	}
	if !strings.HasSuffix(out[0].Content, "Be terse.") {
		t.Fatalf("expected existing system content to follow the search context, got %q", out[0].Content)
	}
}

func TestInjectSearchContext_ReasonerWithoutLeadingSystemMessageInsertsNewOne(t *testing.T) {
	messages := []ApiMessage{{Role: "user", Content: "hi"}}
	out := injectSearchContext(messages, sampleResults(), "o1-reasoner")
	if len(out) != 2 || out[0].Role != "system" {
		t.Fatalf("got %+v", out)
	}
	if !strings.HasPrefix(out[0].Content, "Web search results") {
		t.Fatalf("got %q", out[0].Content)
	}
	if out[1].Content != "hi" {
		t.Fatalf("expected original user message preserved, got %+v", out[1])
	}
}
