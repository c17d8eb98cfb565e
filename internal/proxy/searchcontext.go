package proxy

import (
	"fmt"
	"strings"
)

// lastNonEmptyUserMessage returns the content of the last user message with
// non-empty content, used as the web-search query (spec.md §4.7 step 5).
func lastNonEmptyUserMessage(messages []ApiMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" && strings.TrimSpace(messages[i].Content) != "" {
			return messages[i].Content
		}
	}
	return ""
}

// buildSearchContextMessage renders the search-context system message:
// a title/snippet/href list plus the KaTeX directive (spec.md §4.7 step 5).
// Results whose href fails isValidRealURL are still listed but without a
// link, matching original_source/app1_backend/main.py's is_valid_real_url
// guard.
func buildSearchContextMessage(results []SearchResult) string {
	var b strings.Builder
	b.WriteString("Web search results, use them to answer the user's question if relevant:\n\n")
	for _, r := range results {
		b.WriteString(fmt.Sprintf("%d. %s\n", r.Index, r.Title))
		if isValidRealURL(r.Href) {
			b.WriteString(r.Href + "\n")
		}
		b.WriteString(r.Snippet + "\n\n")
	}
	b.WriteString(katexDirective)
	return b.String()
}

// injectSearchContext inserts the search-context system message into the
// message list, per spec.md §4.7 step 5 and original_source's
// "reasoner"-model merge special case (SPEC_FULL.md §C.4): for a reasoner
// model, the search context always becomes (or leads) the first system
// message, context first then the existing content, matching
// original_source/app1_backend/main.py's
// f"{search_context_msg_content}\n\n{existing_system_content}" ordering; a
// reasoner model with no leading system message gets a brand new one
// inserted at the front instead of falling through to the generic
// last-user-message insertion below.
func injectSearchContext(messages []ApiMessage, results []SearchResult, model string) []ApiMessage {
	contextText := buildSearchContextMessage(results)

	if isReasonerModel(model) {
		if len(messages) > 0 && messages[0].Role == "system" {
			out := make([]ApiMessage, len(messages))
			copy(out, messages)
			out[0].Content = contextText + "\n\n" + strings.TrimLeft(out[0].Content, "\n")
			return out
		}
		out := make([]ApiMessage, 0, len(messages)+1)
		out = append(out, ApiMessage{Role: "system", Content: contextText})
		out = append(out, messages...)
		return out
	}

	lastUserIdx := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			lastUserIdx = i
			break
		}
	}

	injected := ApiMessage{Role: "system", Content: contextText}
	if lastUserIdx < 0 {
		out := make([]ApiMessage, 0, len(messages)+1)
		out = append(out, injected)
		out = append(out, messages...)
		return out
	}

	out := make([]ApiMessage, 0, len(messages)+1)
	out = append(out, messages[:lastUserIdx]...)
	out = append(out, injected)
	out = append(out, messages[lastUserIdx:]...)
	return out
}
