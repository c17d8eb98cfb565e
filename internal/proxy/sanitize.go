package proxy

import "regexp"

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)>`)
	brRe          = regexp.MustCompile(`(?i)<br\s*/?>`)
	closePRe      = regexp.MustCompile(`(?i)</p\s*>`)
	multiLFRe     = regexp.MustCompile(`\n{3,}`)
)

// Sanitize is the output normalization step of spec.md §4.6. It is applied
// to the full raw accumulator on every delta (see diffEmitter), never to an
// isolated delta, because the transforms below are boundary-sensitive and
// not distributive over concatenation.
func Sanitize(s string) string {
	s = scriptStyleRe.ReplaceAllString(s, "")
	s = brRe.ReplaceAllString(s, "\n")
	s = closePRe.ReplaceAllString(s, "\n")
	s = multiLFRe.ReplaceAllString(s, "\n\n")
	s = trimEachLine(s)
	return trimLF(s)
}

func trimEachLine(s string) string {
	out := make([]byte, 0, len(s))
	lineStart := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			line := s[lineStart:i]
			out = append(out, trimSpaceBytes(line)...)
			if i != len(s) {
				out = append(out, '\n')
			}
			lineStart = i + 1
		}
	}
	return string(out)
}

func trimSpaceBytes(s string) string {
	start, end := 0, len(s)
	for start < end && isSpaceByte(s[start]) {
		start++
	}
	for end > start && isSpaceByte(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r'
}

func trimLF(s string) string {
	start, end := 0, len(s)
	for start < end && s[start] == '\n' {
		start++
	}
	for end > start && s[end-1] == '\n' {
		end--
	}
	return s[start:end]
}

// LatexRewriter is the optional, off-by-default post-processor noted in
// spec.md §9 — one source revision rewrote LaTeX into Unicode, which isn't
// idempotent across repeated re-sanitization, so it is never wired in
// unless a caller explicitly supplies one.
type LatexRewriter func(string) string
