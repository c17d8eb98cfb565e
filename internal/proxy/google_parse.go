package proxy

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"go.uber.org/zap"
)

type googleStreamPart struct {
	Text         string              `json:"text,omitempty"`
	FunctionCall *googleFunctionCall `json:"functionCall,omitempty"`
}

type googleStreamContent struct {
	Parts []googleStreamPart `json:"parts"`
}

type googleStreamCandidate struct {
	Content      googleStreamContent `json:"content"`
	FinishReason string              `json:"finishReason,omitempty"`
}

type googleStreamChunk struct {
	Candidates []googleStreamCandidate `json:"candidates"`
}

// GoogleParser implements the plain-text Google-SSE parser plus both guided-
// reasoning extraction modes of spec.md §4.5: the JSON-schema mode
// (ReasoningGoogleJSON, Google-only) and the legacy separator mode
// (ReasoningLegacySeparator), shared with OpenAIParser via separatorExtractor.
type GoogleParser struct {
	mode ReasoningMode

	content   *diffEmitter
	reasoning *diffEmitter
	jsonExt   *googleJSONExtractor
	sep       *separatorExtractor

	reasoningSeen   bool
	reasoningFinish bool
	answerStarted   bool
	logger          *zap.Logger
	requestID       string
}

// NewGoogleParser builds a parser for one request.
func NewGoogleParser(mode ReasoningMode, separator string, rewrite LatexRewriter, logger *zap.Logger, requestID string) *GoogleParser {
	p := &GoogleParser{
		mode:      mode,
		content:   newDiffEmitter(rewrite),
		reasoning: newDiffEmitter(rewrite),
		logger:    logger,
		requestID: requestID,
	}
	switch mode {
	case ReasoningGoogleJSON:
		p.jsonExt = newGoogleJSONExtractor()
	case ReasoningLegacySeparator:
		p.sep = newSeparatorExtractor(separator)
	}
	return p
}

// ProcessLine consumes one complete SSE line.
func (p *GoogleParser) ProcessLine(line []byte) []NormalizedEvent {
	payload, ok := trimDataPrefix(line)
	if !ok {
		return nil
	}

	var chunk googleStreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		if p.logger != nil {
			p.logger.Warn("google: dropping malformed delta", zap.String("request_id", p.requestID), zap.Error(err))
		}
		return nil
	}

	var events []NormalizedEvent
	for _, cand := range chunk.Candidates {
		var text string
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				text += part.Text
			}
			if part.FunctionCall != nil {
				events = append(events, googleFunctionCallEvent(part.FunctionCall))
			}
		}

		if text != "" {
			switch p.mode {
			case ReasoningGoogleJSON:
				p.feedJSON(text, &events)
			case ReasoningLegacySeparator:
				p.feedSeparator(text, &events)
			default:
				if suffix, ok := p.content.Append(text); ok {
					events = append(events, contentEvent(suffix))
				}
			}
		}

		if cand.FinishReason != "" {
			if p.mode == ReasoningGoogleJSON {
				p.flushUnparsedOnFinish(&events)
			}
			p.maybeEmitReasoningFinish(&events)
			events = append(events, finishEvent(cand.FinishReason))
		}
	}
	return events
}

func (p *GoogleParser) feedJSON(delta string, events *[]NormalizedEvent) {
	reasoning, answer, hasAnswer := p.jsonExt.Feed(delta)

	if reasoning != "" {
		if suffix, ok := p.reasoning.SetRaw(reasoning); ok {
			p.reasoningSeen = true
			*events = append(*events, reasoningEvent(suffix))
		}
	}

	if hasAnswer && !p.answerStarted {
		p.answerStarted = true
		p.maybeEmitReasoningFinish(events)
	}
	if hasAnswer {
		if suffix, ok := p.content.SetRaw(answer); ok {
			*events = append(*events, contentEvent(suffix))
		}
	}
}

// feedSeparator drives the legacy separator extractor the same way
// OpenAIParser.feedSeparator does: reasoning text until the separator is
// seen, then content text after it, with later occurrences elided.
func (p *GoogleParser) feedSeparator(delta string, events *[]NormalizedEvent) {
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

// flushUnparsedOnFinish implements the terminal fallback of spec.md §4.5: if
// the buffer was never successfully parsed as the guided JSON schema, emit
// it once, raw, as content.
func (p *GoogleParser) flushUnparsedOnFinish(events *[]NormalizedEvent) {
	if p.jsonExt.Parsed() {
		return
	}
	raw := p.jsonExt.RawBuffer()
	if raw == "" {
		return
	}
	p.maybeEmitReasoningFinish(events)
	if suffix, ok := p.content.SetRaw(raw); ok {
		*events = append(*events, contentEvent(suffix))
	}
}

func (p *GoogleParser) maybeEmitReasoningFinish(events *[]NormalizedEvent) {
	if p.reasoningSeen && !p.reasoningFinish {
		p.reasoningFinish = true
		*events = append(*events, newEvent(EventReasoningFinish))
	}
}

// Flush returns any buffered-but-unemitted text, for spec.md §4.7 step 11.
func (p *GoogleParser) Flush() []NormalizedEvent {
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

func googleFunctionCallEvent(fc *googleFunctionCall) NormalizedEvent {
	e := newEvent(EventGoogleFunctionCallRequest)
	e.ID = synthesizeGeminiFunctionCallID()
	e.Name = fc.Name
	e.ArgumentsObj = fc.Args
	return e
}

// synthesizeGeminiFunctionCallID produces the gemini_fc_<4-byte-hex> id
// format of spec.md §4.5 (original_source: os.urandom(4).hex()).
func synthesizeGeminiFunctionCallID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return "gemini_fc_" + hex.EncodeToString(b)
}
