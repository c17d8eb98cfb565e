package proxy

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// UpstreamClient is the single pooled HTTP client shared across requests,
// matching spec.md §4.4 and §5 ("the pooled upstream HTTP client is the
// only shared mutable resource"). It is built once at process startup and
// closed at shutdown; handlers hold a reference, never a copy, the same
// lifecycle the teacher gives its provider-level *http.Client in
// llm/openai/provider.go.
type UpstreamClient struct {
	HTTPClient  *http.Client
	ReadTimeout time.Duration
}

// NewUpstreamClient builds the pooled client. overallTimeout (spec's
// API_TIMEOUT) is applied as the transport's ResponseHeaderTimeout: it bounds
// the wait for the upstream's response headers, not the length of the
// streamed body. readTimeout is stored on the client; the orchestrator
// enforces its own read timeout via a per-read deadline on the response
// body, since http.Client's own Timeout would also cut off a long-lived
// stream that is still making progress. follow-redirects stays on (the zero CheckRedirect), and
// environment proxy trust is explicitly disabled per spec.md §4.4.
func NewUpstreamClient(overallTimeout, readTimeout time.Duration, maxConnections int) (*UpstreamClient, error) {
	transport := &http.Transport{
		Proxy: nil, // environment-proxy trust disabled
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: overallTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          maxConnections,
		MaxIdleConnsPerHost:   maxConnections,
		MaxConnsPerHost:       maxConnections,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
	// Explicit HTTP/2 configuration rather than relying on implicit ALPN
	// negotiation, so the "HTTP/2-capable" requirement of spec.md §4.4 is
	// a concrete property of this Transport, not an accident of the
	// stdlib default.
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, err
	}

	client := &http.Client{
		Transport: transport,
		// No client-wide Timeout: a streaming response can legitimately
		// run longer than a single request/response round trip. The read
		// timeout is enforced by the orchestrator's per-read check; no
		// deadline bounds the whole streamed response.
	}

	return &UpstreamClient{HTTPClient: client, ReadTimeout: readTimeout}, nil
}

// Close releases idle connections held by the pool.
func (c *UpstreamClient) Close() {
	if c == nil || c.HTTPClient == nil {
		return
	}
	if t, ok := c.HTTPClient.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}
