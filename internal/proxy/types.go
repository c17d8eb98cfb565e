// Package proxy implements the streaming pipeline: request normalization and
// payload translation, upstream SSE framing, per-provider parsing, the
// guided-reasoning extractor, and the orchestrator that ties them together
// behind POST /chat.
package proxy

import (
	"encoding/json"
	"time"
)

// Provider is the closed sum type this proxy dispatches on — never a
// dynamically-registered string key the way the teacher's llm.Provider
// registry works, because a request names its provider directly.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGoogle Provider = "google"
)

// ToolCallFunction is the {name, arguments} pair inside a ToolCall.
// Arguments is always a JSON-encoded string, never a decoded object — this
// is an explicit invariant of ApiMessage.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is one OpenAI-shape tool invocation attached to an assistant
// message.
type ToolCall struct {
	Index    *int             `json:"index,omitempty"`
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ApiMessage is one entry of CanonicalRequest.Messages.
type ApiMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// IsEmpty reports whether this message carries neither content nor tool
// calls and should be filtered out of the outgoing request (spec.md §3).
func (m ApiMessage) IsEmpty() bool {
	return m.Content == "" && len(m.ToolCalls) == 0
}

// ToolFunctionDef is an OpenAI-style function-tool declaration.
type ToolFunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolDef is one entry of CanonicalRequest.Tools.
type ToolDef struct {
	Type     string          `json:"type"`
	Function ToolFunctionDef `json:"function"`
}

// ToolChoiceFunction names a specific forced tool in a named tool_choice.
type ToolChoiceFunction struct {
	Name string `json:"name"`
}

// ToolChoice is either a bare keyword ("none"/"auto"/"required") or a
// {type:"function", function:{name}} selector.
type ToolChoice struct {
	Keyword  string
	Function *ToolChoiceFunction
}

// UnmarshalJSON accepts either a bare string or a {type, function} object.
func (t *ToolChoice) UnmarshalJSON(data []byte) error {
	var kw string
	if err := json.Unmarshal(data, &kw); err == nil {
		t.Keyword = kw
		return nil
	}
	var obj struct {
		Type     string              `json:"type"`
		Function *ToolChoiceFunction `json:"function"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t.Keyword = obj.Type
	t.Function = obj.Function
	return nil
}

func (t ToolChoice) MarshalJSON() ([]byte, error) {
	if t.Function != nil {
		return json.Marshal(struct {
			Type     string             `json:"type"`
			Function ToolChoiceFunction `json:"function"`
		}{Type: "function", Function: *t.Function})
	}
	return json.Marshal(t.Keyword)
}

// CanonicalRequest is the provider-agnostic body accepted by POST /chat.
type CanonicalRequest struct {
	Provider    Provider     `json:"provider"`
	Model       string       `json:"model"`
	APIKey      string       `json:"api_key"`
	APIAddress  string       `json:"api_address,omitempty"`
	Messages    []ApiMessage `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
	TopP        *float64     `json:"top_p,omitempty"`
	MaxTokens   *int         `json:"max_tokens,omitempty"`
	Tools       []ToolDef    `json:"tools,omitempty"`
	ToolChoice  *ToolChoice  `json:"tool_choice,omitempty"`

	UseWebSearch bool `json:"use_web_search,omitempty"`

	// ForceCustomReasoningPrompt is three-valued: nil = unset, else
	// true/false. Bound from either of two JSON field names (spec.md §9:
	// the field name drifted between source revisions).
	ForceCustomReasoningPrompt *bool `json:"-"`

	CustomModelParameters map[string]json.RawMessage `json:"custom_model_parameters,omitempty"`
	CustomExtraBody       map[string]json.RawMessage `json:"custom_extra_body,omitempty"`
}

// UnmarshalJSON binds both force_custom_reasoning_prompt and
// force_google_reasoning_prompt to ForceCustomReasoningPrompt; if both are
// present, force_custom_reasoning_prompt wins.
func (r *CanonicalRequest) UnmarshalJSON(data []byte) error {
	type alias CanonicalRequest
	aux := struct {
		*alias
		ForceCustom *bool `json:"force_custom_reasoning_prompt"`
		ForceGoogle *bool `json:"force_google_reasoning_prompt"`
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.ForceCustom != nil:
		r.ForceCustomReasoningPrompt = aux.ForceCustom
	case aux.ForceGoogle != nil:
		r.ForceCustomReasoningPrompt = aux.ForceGoogle
	}
	return nil
}

// SearchResult is one ranked Google Custom Search hit, 1-based.
type SearchResult struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Href    string `json:"href"`
	Snippet string `json:"snippet"`
}

// EventType enumerates the fixed NormalizedEvent set of spec.md §3.
type EventType string

const (
	EventContent                   EventType = "content"
	EventReasoning                 EventType = "reasoning"
	EventReasoningFinish           EventType = "reasoning_finish"
	EventToolCallsChunk            EventType = "tool_calls_chunk"
	EventGoogleFunctionCallRequest EventType = "google_function_call_request"
	EventStatusUpdate              EventType = "status_update"
	EventWebSearchResults          EventType = "web_search_results"
	EventFinish                    EventType = "finish"
	EventError                     EventType = "error"
)

const (
	StageWebIndexingStarted  = "web_indexing_started"
	StageWebAnalysisStarted  = "web_analysis_started"
	StageWebAnalysisComplete = "web_analysis_complete"
)

// NormalizedEvent is one JSON object written as one LF-terminated line on
// the /chat response body.
type NormalizedEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Text string `json:"text,omitempty"`

	Data json.RawMessage `json:"data,omitempty"`

	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name,omitempty"`
	ArgumentsObj json.RawMessage `json:"arguments_obj,omitempty"`

	Stage string `json:"stage,omitempty"`

	Results []SearchResult `json:"results,omitempty"`

	Reason string `json:"reason,omitempty"`

	Message        string `json:"message,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

func newEvent(t EventType) NormalizedEvent {
	return NormalizedEvent{Type: t, Timestamp: time.Now().UTC()}
}
