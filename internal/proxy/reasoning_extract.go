package proxy

import (
	"encoding/json"
	"regexp"
	"strings"
)

// separatorExtractor implements the legacy separator mode of spec.md §4.5:
// while the separator has not been seen, everything is reasoning; once seen,
// the text before it is the final reasoning text and everything after is
// content, with any further occurrences of the separator elided.
//
// It withholds the last len(separator)-1 bytes of unconfirmed text so a
// separator split across two upstream deltas is never mistaken for plain
// reasoning text.
type separatorExtractor struct {
	separator string
	rawAll    string
	found     bool
	postRaw   string
}

func newSeparatorExtractor(separator string) *separatorExtractor {
	return &separatorExtractor{separator: separator}
}

// Feed appends delta to the internal buffer and returns the current
// confirmed-reasoning prefix and confirmed-content prefix (both cumulative,
// suitable for diffEmitter.SetRaw), plus whether this call is the one that
// crossed from reasoning into content.
func (e *separatorExtractor) Feed(delta string) (reasoningPrefix, contentPrefix string, transitioned bool) {
	if e.found {
		e.postRaw += delta
		return "", elideSeparator(e.postRaw, e.separator), false
	}

	e.rawAll += delta
	idx := strings.Index(e.rawAll, e.separator)
	if idx < 0 {
		safeLen := len(e.rawAll) - (len(e.separator) - 1)
		if safeLen < 0 {
			safeLen = 0
		}
		return e.rawAll[:safeLen], "", false
	}

	e.found = true
	reasoningPrefix = e.rawAll[:idx]
	rest := e.rawAll[idx+len(e.separator):]
	e.postRaw = rest
	return reasoningPrefix, elideSeparator(rest, e.separator), true
}

func elideSeparator(s, separator string) string {
	if separator == "" {
		return s
	}
	return strings.ReplaceAll(s, separator, "")
}

// googleJSONExtractor implements the Google JSON-schema guided-reasoning
// mode of spec.md §4.5: the model is asked to emit one JSON object
// {reasoning, answer}; the extractor re-attempts a full parse on every
// delta (tolerating partial JSON mid-stream) and, once fields become
// visible, exposes their growing cumulative values.
type googleJSONExtractor struct {
	buf    string
	parsed bool // a strict, complete parse has succeeded at least once
}

func newGoogleJSONExtractor() *googleJSONExtractor {
	return &googleJSONExtractor{}
}

type guidedSchema struct {
	Reasoning string `json:"reasoning"`
	Answer    string `json:"answer"`
}

var (
	reasoningFieldRe = regexp.MustCompile(`"reasoning"\s*:\s*"((?:[^"\\]|\\.)*)`)
	answerFieldRe    = regexp.MustCompile(`"answer"\s*:\s*"((?:[^"\\]|\\.)*)`)
)

// Feed appends delta and returns the best-effort cumulative reasoning and
// answer text visible so far. hasAnswer reports whether any answer content
// (even empty-but-present) has started streaming, which governs the
// reasoning→content transition.
func (e *googleJSONExtractor) Feed(delta string) (reasoning, answer string, hasAnswer bool) {
	e.buf += delta

	var schema guidedSchema
	if json.Unmarshal([]byte(e.buf), &schema) == nil {
		e.parsed = true
		return schema.Reasoning, schema.Answer, true
	}

	reasoning = unescapeJSONFragment(firstSubmatch(reasoningFieldRe, e.buf))
	answerMatch := answerFieldRe.FindStringSubmatch(e.buf)
	hasAnswer = answerMatch != nil
	if hasAnswer {
		answer = unescapeJSONFragment(answerMatch[1])
	}
	return reasoning, answer, hasAnswer
}

// Parsed reports whether a strict complete JSON parse has ever succeeded.
func (e *googleJSONExtractor) Parsed() bool {
	return e.parsed
}

// RawBuffer returns the unparsed accumulator, for the terminal fallback of
// spec.md §4.5 ("emit the raw buffer once as content").
func (e *googleJSONExtractor) RawBuffer() string {
	return e.buf
}

func firstSubmatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// unescapeJSONFragment best-effort unescapes a partial JSON string value
// (no surrounding quotes) that may or may not be terminated yet.
func unescapeJSONFragment(s string) string {
	if s == "" {
		return s
	}
	// Wrap and let encoding/json do the real unescaping; a dangling
	// trailing backslash (unterminated escape mid-stream) has its
	// backslash stripped first so Unmarshal doesn't choke on it.
	if strings.HasSuffix(s, `\`) && !strings.HasSuffix(s, `\\`) {
		s = s[:len(s)-1]
	}
	var out string
	if json.Unmarshal([]byte(`"`+s+`"`), &out) == nil {
		return out
	}
	return s
}
