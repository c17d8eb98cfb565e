package proxy

import (
	"encoding/json"

	"go.uber.org/zap"
)

type openAIDelta struct {
	Role             string          `json:"role,omitempty"`
	Content          string          `json:"content,omitempty"`
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	ToolCalls        json.RawMessage `json:"tool_calls,omitempty"`
	FinishReason     *string         `json:"finish_reason,omitempty"`
}

type openAIChoice struct {
	Delta        openAIDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason,omitempty"`
}

type openAIStreamChunk struct {
	Choices []openAIChoice `json:"choices"`
}

// OpenAIParser implements the OpenAI-SSE provider parser of spec.md §4.5,
// including the legacy-separator reasoning extraction layered on top when
// active.
type OpenAIParser struct {
	mode ReasoningMode
	sep  *separatorExtractor

	reasoning *diffEmitter
	content   *diffEmitter

	reasoningSeen   bool
	reasoningFinish bool
	logger          *zap.Logger
	requestID       string
}

// NewOpenAIParser builds a parser for one request. separator is only used
// when mode is ReasoningLegacySeparator.
func NewOpenAIParser(mode ReasoningMode, separator string, rewrite LatexRewriter, logger *zap.Logger, requestID string) *OpenAIParser {
	p := &OpenAIParser{
		mode:      mode,
		reasoning: newDiffEmitter(rewrite),
		content:   newDiffEmitter(rewrite),
		logger:    logger,
		requestID: requestID,
	}
	if mode == ReasoningLegacySeparator {
		p.sep = newSeparatorExtractor(separator)
	}
	return p
}

// ProcessLine consumes one complete SSE line (as produced by Framer,
// "data: ..." included) and returns the NormalizedEvents it yields. Malformed
// JSON on a single delta is logged and dropped, per spec.md §7; the stream
// continues.
func (p *OpenAIParser) ProcessLine(line []byte) []NormalizedEvent {
	payload, ok := trimDataPrefix(line)
	if !ok {
		return nil
	}
	if string(payload) == "[DONE]" {
		return nil
	}

	var chunk openAIStreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		if p.logger != nil {
			p.logger.Warn("openai: dropping malformed delta", zap.String("request_id", p.requestID), zap.Error(err))
		}
		return nil
	}

	var events []NormalizedEvent
	for _, choice := range chunk.Choices {
		p.processDelta(choice.Delta, &events)

		reason := choice.FinishReason
		if reason == nil {
			reason = choice.Delta.FinishReason
		}
		if reason != nil {
			p.maybeEmitReasoningFinish(&events)
			events = append(events, finishEvent(*reason))
		}
	}
	return events
}

func (p *OpenAIParser) processDelta(delta openAIDelta, events *[]NormalizedEvent) {
	if delta.ReasoningContent != "" {
		if suffix, ok := p.reasoning.Append(delta.ReasoningContent); ok {
			p.reasoningSeen = true
			*events = append(*events, reasoningEvent(suffix))
		}
	}

	if len(delta.ToolCalls) > 0 {
		p.maybeEmitReasoningFinish(events)
		*events = append(*events, toolCallsChunkEvent(delta.ToolCalls))
	}

	if delta.Content != "" {
		if p.mode == ReasoningLegacySeparator {
			p.feedSeparator(delta.Content, events)
			return
		}
		p.maybeEmitReasoningFinish(events)
		if suffix, ok := p.content.Append(delta.Content); ok {
			*events = append(*events, contentEvent(suffix))
		}
	}
}

func (p *OpenAIParser) feedSeparator(delta string, events *[]NormalizedEvent) {
	reasoningPrefix, contentPrefix, transitioned := p.sep.Feed(delta)
	if reasoningPrefix != "" {
		if suffix, ok := p.reasoning.SetRaw(reasoningPrefix); ok {
			p.reasoningSeen = true
			*events = append(*events, reasoningEvent(suffix))
		}
	}
	if transitioned {
		p.maybeEmitReasoningFinish(events)
	}
	if contentPrefix != "" {
		if suffix, ok := p.content.SetRaw(contentPrefix); ok {
			*events = append(*events, contentEvent(suffix))
		}
	}
}

func (p *OpenAIParser) maybeEmitReasoningFinish(events *[]NormalizedEvent) {
	if p.reasoningSeen && !p.reasoningFinish {
		p.reasoningFinish = true
		*events = append(*events, newEvent(EventReasoningFinish))
	}
}

// Flush returns any buffered-but-unemitted reasoning/content text, for
// spec.md §4.7 step 11 (clean completion without a terminal finish from the
// parser).
func (p *OpenAIParser) Flush() []NormalizedEvent {
	var events []NormalizedEvent
	if suffix, ok := p.reasoning.SetRaw(p.reasoning.raw); ok {
		events = append(events, reasoningEvent(suffix))
	}
	p.maybeEmitReasoningFinish(&events)
	if suffix, ok := p.content.SetRaw(p.content.raw); ok {
		events = append(events, contentEvent(suffix))
	}
	return events
}

func reasoningEvent(text string) NormalizedEvent {
	e := newEvent(EventReasoning)
	e.Text = text
	return e
}

func contentEvent(text string) NormalizedEvent {
	e := newEvent(EventContent)
	e.Text = text
	return e
}

func toolCallsChunkEvent(data json.RawMessage) NormalizedEvent {
	e := newEvent(EventToolCallsChunk)
	e.Data = data
	return e
}

func finishEvent(reason string) NormalizedEvent {
	e := newEvent(EventFinish)
	e.Reason = reason
	return e
}

func errorEvent(message string, upstreamStatus int) NormalizedEvent {
	e := newEvent(EventError)
	e.Message = message
	e.UpstreamStatus = upstreamStatus
	return e
}

func statusUpdateEvent(stage string) NormalizedEvent {
	e := newEvent(EventStatusUpdate)
	e.Stage = stage
	return e
}

func webSearchResultsEvent(results []SearchResult) NormalizedEvent {
	e := newEvent(EventWebSearchResults)
	e.Results = results
	return e
}

// trimDataPrefix strips the SSE "data: " (or "data:") prefix; lines without
// that prefix (comments, event:, id: fields) are not forwarded.
func trimDataPrefix(line []byte) ([]byte, bool) {
	line = trimLeadingSpace(line)
	const p1 = "data: "
	const p2 = "data:"
	if hasPrefix(line, p1) {
		return trimLeadingSpace(line[len(p1):]), true
	}
	if hasPrefix(line, p2) {
		return trimLeadingSpace(line[len(p2):]), true
	}
	return nil, false
}

func hasPrefix(b []byte, p string) bool {
	if len(b) < len(p) {
		return false
	}
	return string(b[:len(p)]) == p
}

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	return b[i:]
}
