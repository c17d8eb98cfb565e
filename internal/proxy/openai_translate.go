package proxy

import (
	"encoding/json"
	"strings"
)

const openAICompletionsPath = "/v1/chat/completions"

const katexDirective = "When writing mathematics, delimit inline expressions with $...$ and " +
	"display expressions with $$...$$ (KaTeX-compatible). Do not use any other math delimiter syntax."

// openAIMessage mirrors ApiMessage but with tool_calls typed for direct
// marshaling into the upstream chat/completions body.
type openAIMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// BuildOpenAIRequest translates a CanonicalRequest into the OpenAI
// chat/completions streaming body and the URL to POST it to (spec.md
// §4.2). mode/separator apply the legacy-separator reasoning mutation when
// active; the Google JSON-schema mode never applies to the OpenAI target.
func BuildOpenAIRequest(req *CanonicalRequest, defaultBase string, mode ReasoningMode, separator string) (url string, body []byte, err error) {
	base := req.APIAddress
	if base == "" {
		base = defaultBase
	}
	url = strings.TrimRight(base, "/") + openAICompletionsPath

	messages := make([]openAIMessage, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		if m.IsEmpty() {
			continue
		}
		messages = append(messages, openAIMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
			ToolCalls:  m.ToolCalls,
		})
	}

	messages = mergeKatexDirective(messages)

	if mode == ReasoningLegacySeparator {
		messages = appendLegacySeparatorInstruction(messages, separator)
	}

	out := map[string]json.RawMessage{}
	mustSet(out, "model", req.Model)
	mustSetRaw(out, "messages", messages)
	mustSet(out, "stream", true)

	if req.Temperature != nil {
		mustSet(out, "temperature", *req.Temperature)
	}
	if req.TopP != nil {
		mustSet(out, "top_p", *req.TopP)
	}
	if req.MaxTokens != nil {
		mustSet(out, "max_tokens", *req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		mustSetRaw(out, "tools", req.Tools)
	}
	if req.ToolChoice != nil {
		mustSetRaw(out, "tool_choice", req.ToolChoice)
	}
	for k, v := range req.CustomModelParameters {
		out[k] = v
	}
	if len(req.CustomExtraBody) > 0 {
		mustSetRaw(out, "extra_body", req.CustomExtraBody)
	}

	body, err = json.Marshal(out)
	return url, body, err
}

// mergeKatexDirective is the translator-side contract of spec.md §4.2: if a
// leading system message exists, append the directive; otherwise prepend a
// new one.
func mergeKatexDirective(messages []openAIMessage) []openAIMessage {
	if len(messages) > 0 && messages[0].Role == "system" {
		messages[0].Content = strings.TrimRight(messages[0].Content, "\n") + "\n\n" + katexDirective
		return messages
	}
	prefixed := make([]openAIMessage, 0, len(messages)+1)
	prefixed = append(prefixed, openAIMessage{Role: "system", Content: katexDirective})
	prefixed = append(prefixed, messages...)
	return prefixed
}

func appendLegacySeparatorInstruction(messages []openAIMessage, separator string) []openAIMessage {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			messages[i].Content += legacySeparatorInstruction(separator)
			break
		}
	}
	return messages
}

func mustSet(m map[string]json.RawMessage, key string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	m[key] = b
}

func mustSetRaw(m map[string]json.RawMessage, key string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	m[key] = b
}
