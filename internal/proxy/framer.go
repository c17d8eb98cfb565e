package proxy

import (
	"bytes"

	"go.uber.org/zap"
)

// Framer is the stateless byte→line component of spec.md §4.1. It owns no
// request state of its own: the residual tail is returned by Feed and carried
// between calls by the caller.
type Framer struct {
	maxLineLength int
	logger        *zap.Logger
}

// NewFramer builds a Framer with the given drop threshold (spec.md §6.3
// MAX_SSE_LINE_LENGTH, default 1 MiB).
func NewFramer(maxLineLength int, logger *zap.Logger) *Framer {
	return &Framer{maxLineLength: maxLineLength, logger: logger}
}

// Feed appends chunk to buf and extracts every complete line (LF-terminated,
// trailing CR stripped). It returns the complete lines and the new residual
// buffer — the tail after the last LF, which the caller must carry into the
// next Feed call. Lines longer than maxLineLength are dropped (logged) but
// their terminating LF is still consumed; Feed never returns an error.
func (f *Framer) Feed(buf []byte, chunk []byte) (lines [][]byte, residual []byte) {
	if len(chunk) > 0 {
		buf = append(buf, chunk...)
	}

	start := 0
	for {
		idx := bytes.IndexByte(buf[start:], '\n')
		if idx < 0 {
			break
		}
		end := start + idx
		line := buf[start:end]
		line = bytes.TrimSuffix(line, []byte{'\r'})

		if f.maxLineLength > 0 && len(line) > f.maxLineLength {
			if f.logger != nil {
				f.logger.Warn("dropping oversized SSE line",
					zap.Int("length", len(line)),
					zap.Int("max", f.maxLineLength),
				)
			}
		} else {
			cp := make([]byte, len(line))
			copy(cp, line)
			lines = append(lines, cp)
		}

		start = end + 1
	}

	rest := buf[start:]
	residual = make([]byte, len(rest))
	copy(residual, rest)
	return lines, residual
}
