package proxy

import (
	"errors"
	"io"
	"time"
)

// errReadTimeout is the sentinel returned when a read stalls past the
// configured read timeout (spec.md §6.3 READ_TIMEOUT, §7 "upstream
// timeout").
var errReadTimeout = errors.New("upstream read timeout")

// timedReader wraps an io.Reader and applies a per-Read deadline, the same
// idle-timeout pattern the teacher uses in llm/openai/sse.go to detect a
// stalled upstream connection that never closes.
type timedReader struct {
	r       io.Reader
	timeout time.Duration
}

func (t *timedReader) Read(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := t.r.Read(p)
		ch <- result{n, err}
	}()

	select {
	case res := <-ch:
		return res.n, res.err
	case <-time.After(t.timeout):
		return 0, errReadTimeout
	}
}

// IsReadTimeout reports whether err is this reader's idle-timeout sentinel.
func IsReadTimeout(err error) bool {
	return errors.Is(err, errReadTimeout)
}
