package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime"
	"time"

	apperrors "github.com/modelgateway/chatproxy/pkg/errors"
	"github.com/modelgateway/chatproxy/pkg/safego"
	"go.uber.org/zap"
)

// EventWriter is the downstream sink for NormalizedEvents: one line-
// delimited JSON object per call to Write. A non-nil error signals the
// caller disconnected (spec.md §7 "cancellation: silent; no further
// writes").
type EventWriter interface {
	Write(NormalizedEvent) error
}

// lineParser is satisfied by both *OpenAIParser and *GoogleParser.
type lineParser interface {
	ProcessLine(line []byte) []NormalizedEvent
	Flush() []NormalizedEvent
}

// Orchestrator drives one /chat invocation end to end: validation, optional
// web search, payload construction, upstream streaming, and the
// framer→parser→extractor→emit pipeline of spec.md §4.7.
type Orchestrator struct {
	openAIBase       string
	maxSSELineLength int
	readTimeout      time.Duration
	separator        string
	latexRewrite     LatexRewriter

	upstream *UpstreamClient
	search   *SearchCollaborator
	logger   *zap.Logger
}

// NewOrchestrator wires the pieces together; upstream may be nil if the
// pool failed to come up (Validate then always rejects with 503).
func NewOrchestrator(openAIBase string, maxSSELineLength int, readTimeout time.Duration, separator string, upstream *UpstreamClient, search *SearchCollaborator, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		openAIBase:       openAIBase,
		maxSSELineLength: maxSSELineLength,
		readTimeout:      readTimeout,
		separator:        separator,
		upstream:         upstream,
		search:           search,
		logger:           logger,
	}
}

// Validate performs the pre-stream checks of spec.md §4.7 steps 2-3. On
// success it mutates req.Messages to drop empty entries. Returns nil on
// success.
func (o *Orchestrator) Validate(req *CanonicalRequest) *apperrors.AppError {
	if o.upstream == nil || o.upstream.HTTPClient == nil {
		return apperrors.NewUnavailableError("upstream client not initialized")
	}
	if req.Provider != ProviderOpenAI && req.Provider != ProviderGoogle {
		return apperrors.NewValidationError("unknown provider: " + string(req.Provider))
	}

	filtered := make([]ApiMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if !m.IsEmpty() {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) == 0 {
		return apperrors.NewValidationError("messages must not be empty after filtering")
	}
	req.Messages = filtered
	return nil
}

// Stream runs the streaming body of the request. Headers (200, streaming
// content-type) must already be committed by the caller — everything from
// here on communicates failure through NormalizedEvents, never an HTTP
// status change, per spec.md §7's stream-is-the-error-boundary rule.
func (o *Orchestrator) Stream(ctx context.Context, req *CanonicalRequest, requestID string, ew EventWriter) {
	log := o.logger.With(zap.String("request_id", requestID), zap.String("provider", string(req.Provider)), zap.String("model", req.Model))

	finishEmitted := false
	disconnected := false
	emit := func(e NormalizedEvent) bool {
		if e.Type == EventFinish {
			finishEmitted = true
		}
		if err := ew.Write(e); err != nil {
			disconnected = true
			log.Info("downstream disconnected, stopping")
			return false
		}
		return true
	}
	defer func() {
		if !finishEmitted && !disconnected && ctx.Err() == nil {
			_ = ew.Write(finishEvent("internal_server_error"))
		}
	}()

	mode := DecideReasoningMode(req.Provider, req.Model, req.ForceCustomReasoningPrompt)

	searchPerformed, ok := o.runWebSearch(ctx, req, requestID, emit)
	if !ok {
		return
	}

	url, body, headers, err := o.buildUpstreamRequest(req, mode)
	if err != nil {
		emit(errorEvent("failed to build upstream request: "+err.Error(), 0))
		emit(finishEvent("internal_server_error"))
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		emit(errorEvent("failed to build upstream request: "+err.Error(), 0))
		emit(finishEvent("internal_server_error"))
		return
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := o.upstream.HTTPClient.Do(httpReq)
	if err != nil {
		o.handleConnectError(ctx, err, log, emit)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		emit(errorEvent(extractUpstreamErrorMessage(data), resp.StatusCode))
		emit(finishEvent("upstream_error"))
		return
	}

	var parser lineParser
	switch req.Provider {
	case ProviderOpenAI:
		parser = NewOpenAIParser(mode, o.separator, o.latexRewrite, o.logger, requestID)
	case ProviderGoogle:
		parser = NewGoogleParser(mode, o.separator, o.latexRewrite, o.logger, requestID)
	}

	o.pump(ctx, resp.Body, parser, searchPerformed, log, emit)
}

// runWebSearch implements spec.md §4.7 step 5. Returns whether a search was
// attempted (a non-empty query was found and search credentials are
// configured) and whether the caller should
// keep going (false means the downstream disconnected mid-sequence).
func (o *Orchestrator) runWebSearch(ctx context.Context, req *CanonicalRequest, requestID string, emit func(NormalizedEvent) bool) (performed bool, ok bool) {
	if !req.UseWebSearch {
		return false, true
	}
	query := lastNonEmptyUserMessage(req.Messages)
	if query == "" || o.search == nil || !o.search.Available() {
		return false, true
	}

	if !emit(statusUpdateEvent(StageWebIndexingStarted)) {
		return true, false
	}

	results := o.runSearchIsolated(ctx, query, requestID)
	if len(results) > 0 {
		if !emit(webSearchResultsEvent(results)) {
			return true, false
		}
		req.Messages = injectSearchContext(req.Messages, results, req.Model)
	}

	if !emit(statusUpdateEvent(StageWebAnalysisStarted)) {
		return true, false
	}
	return true, true
}

// runSearchIsolated runs the blocking Custom Search call off the request
// goroutine, the way the teacher isolates blocking tool calls with
// safego.Go: a panic inside the search SDK is recovered and logged rather
// than taking down the whole request, and a caller cancellation still
// unblocks the wait immediately.
func (o *Orchestrator) runSearchIsolated(ctx context.Context, query, requestID string) []SearchResult {
	done := make(chan []SearchResult, 1)
	safego.Go(o.logger, "web-search", func() {
		done <- o.search.Search(ctx, query, requestID)
	})

	select {
	case results := <-done:
		return results
	case <-ctx.Done():
		return nil
	}
}

func (o *Orchestrator) buildUpstreamRequest(req *CanonicalRequest, mode ReasoningMode) (url string, body []byte, headers map[string]string, err error) {
	switch req.Provider {
	case ProviderOpenAI:
		url, body, err = BuildOpenAIRequest(req, o.openAIBase, mode, o.separator)
		headers = map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + req.APIKey,
		}
	case ProviderGoogle:
		url, body, err = BuildGoogleRequest(req, mode, o.separator)
		headers = map[string]string{"Content-Type": "application/json"}
	}
	return url, body, headers, err
}

func (o *Orchestrator) handleConnectError(ctx context.Context, err error, log *zap.Logger, emit func(NormalizedEvent) bool) {
	if ctx.Err() != nil {
		log.Info("request canceled before upstream connected")
		return
	}
	if isTimeoutErr(err) {
		emit(errorEvent(err.Error(), 0))
		emit(finishEvent("timeout_error"))
		return
	}
	emit(errorEvent(err.Error(), 0))
	emit(finishEvent("network_error"))
}

// pump implements spec.md §4.7 steps 8-11: feed upstream bytes through the
// framer, dispatch complete lines to the parser, and emit the resulting
// events in order until the stream ends, errors, or the caller cancels.
func (o *Orchestrator) pump(ctx context.Context, body io.Reader, parser lineParser, searchPerformed bool, log *zap.Logger, emit func(NormalizedEvent) bool) {
	framer := NewFramer(o.maxSSELineLength, o.logger)
	reader := &timedReader{r: body, timeout: o.readTimeout}

	var residual []byte
	buf := make([]byte, 32*1024)
	firstChunk := true
	sawFinish := false

	emitTracked := func(ev NormalizedEvent) bool {
		if ev.Type == EventFinish {
			sawFinish = true
		}
		return emit(ev)
	}

	for {
		if ctx.Err() != nil {
			log.Info("context canceled, closing upstream connection")
			return
		}

		n, err := reader.Read(buf)
		if n > 0 {
			if firstChunk {
				firstChunk = false
				if searchPerformed {
					if !emitTracked(statusUpdateEvent(StageWebAnalysisComplete)) {
						return
					}
				}
			}
			var lines [][]byte
			lines, residual = framer.Feed(residual, buf[:n])
			for _, line := range lines {
				for _, ev := range parser.ProcessLine(line) {
					if !emitTracked(ev) {
						return
					}
				}
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if IsReadTimeout(err) {
				emitTracked(errorEvent("upstream read timed out", 0))
				emitTracked(finishEvent("timeout_error"))
				return
			}
			if ctx.Err() != nil {
				log.Info("context canceled during stream")
				return
			}
			emitTracked(errorEvent(err.Error(), 0))
			emitTracked(finishEvent("network_error"))
			return
		}

		// Cooperative yield after each chunk so one heavy stream doesn't
		// starve other requests (spec.md §5).
		runtime.Gosched()
	}

	for _, ev := range parser.Flush() {
		if !emitTracked(ev) {
			return
		}
	}
	// The parser may already have emitted a terminal finish (e.g. an
	// explicit finish_reason on the last delta); only synthesize one here
	// if it didn't, so exactly one finish event reaches the caller.
	if !sawFinish {
		emit(finishEvent("stop"))
	}
}

func isTimeoutErr(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// extractUpstreamErrorMessage attempts to pull {"error":{"message"}} out of
// an upstream error body (both OpenAI's and Google's error envelopes use
// this shape); falls back to the raw body text, capped, on any other shape.
func extractUpstreamErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	const maxLen = 500
	if len(body) > maxLen {
		return string(body[:maxLen])
	}
	return string(body)
}
