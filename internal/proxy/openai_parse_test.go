package proxy

import "testing"

func TestOpenAIParser_ContentDeltas(t *testing.T) {
	p := NewOpenAIParser(ReasoningNone, "", nil, nil, "req1")

	events := p.ProcessLine([]byte(`data: {"choices":[{"delta":{"content":"Hel"}}]}`))
	if len(events) != 1 || events[0].Type != EventContent || events[0].Text != "Hel" {
		t.Fatalf("got %+v", events)
	}

	events = p.ProcessLine([]byte(`data: {"choices":[{"delta":{"content":"lo"}}]}`))
	if len(events) != 1 || events[0].Text != "lo" {
		t.Fatalf("got %+v", events)
	}
}

func TestOpenAIParser_ReasoningThenContentEmitsFinish(t *testing.T) {
	p := NewOpenAIParser(ReasoningNone, "", nil, nil, "req1")

	events := p.ProcessLine([]byte(`data: {"choices":[{"delta":{"reasoning_content":"thinking"}}]}`))
	if len(events) != 1 || events[0].Type != EventReasoning {
		t.Fatalf("got %+v", events)
	}

	events = p.ProcessLine([]byte(`data: {"choices":[{"delta":{"content":"answer"}}]}`))
	if len(events) != 2 {
		t.Fatalf("expected reasoning_finish + content, got %+v", events)
	}
	if events[0].Type != EventReasoningFinish {
		t.Fatalf("expected reasoning_finish first, got %+v", events[0])
	}
	if events[1].Type != EventContent || events[1].Text != "answer" {
		t.Fatalf("got %+v", events[1])
	}
}

func TestOpenAIParser_DoneSentinelIgnored(t *testing.T) {
	p := NewOpenAIParser(ReasoningNone, "", nil, nil, "req1")
	events := p.ProcessLine([]byte("data: [DONE]"))
	if events != nil {
		t.Fatalf("expected no events for [DONE], got %+v", events)
	}
}

func TestOpenAIParser_MalformedJSONDropped(t *testing.T) {
	p := NewOpenAIParser(ReasoningNone, "", nil, nil, "req1")
	events := p.ProcessLine([]byte(`data: {not json`))
	if events != nil {
		t.Fatalf("expected malformed delta to be dropped, got %+v", events)
	}
}

func TestOpenAIParser_FinishReasonEmitsFinishEvent(t *testing.T) {
	p := NewOpenAIParser(ReasoningNone, "", nil, nil, "req1")
	events := p.ProcessLine([]byte(`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`))
	if len(events) != 1 || events[0].Type != EventFinish || events[0].Reason != "stop" {
		t.Fatalf("got %+v", events)
	}
}

func TestOpenAIParser_ToolCallsChunkPassesDataThrough(t *testing.T) {
	p := NewOpenAIParser(ReasoningNone, "", nil, nil, "req1")
	events := p.ProcessLine([]byte(`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"f","arguments":"{}"}}]}}]}`))
	if len(events) != 1 || events[0].Type != EventToolCallsChunk {
		t.Fatalf("got %+v", events)
	}
}

func TestOpenAIParser_LegacySeparatorMode(t *testing.T) {
	p := NewOpenAIParser(ReasoningLegacySeparator, "---", nil, nil, "req1")

	events := p.ProcessLine([]byte(`data: {"choices":[{"delta":{"content":"think---answer"}}]}`))
	if len(events) != 3 {
		t.Fatalf("expected reasoning + reasoning_finish + content, got %+v", events)
	}
	if events[0].Type != EventReasoning || events[0].Text != "think" {
		t.Fatalf("got %+v", events[0])
	}
	if events[1].Type != EventReasoningFinish {
		t.Fatalf("got %+v", events[1])
	}
	if events[2].Type != EventContent || events[2].Text != "answer" {
		t.Fatalf("got %+v", events[2])
	}
}

func TestOpenAIParser_FlushAfterFullEmissionEmitsNothing(t *testing.T) {
	p := NewOpenAIParser(ReasoningNone, "", nil, nil, "req1")
	p.ProcessLine([]byte(`data: {"choices":[{"delta":{"content":"partial"}}]}`))

	events := p.Flush()
	if len(events) != 0 {
		t.Fatalf("nothing new buffered since last emission, got %+v", events)
	}
}
