package proxy

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// SearchCollaborator performs the Google Custom Search call of spec.md
// §4.3. It never fails the enclosing request: any error is logged and an
// empty result list is returned.
type SearchCollaborator struct {
	apiKey      string
	cseID       string
	resultCount int64
	snippetCap  int
	logger      *zap.Logger
}

// NewSearchCollaborator builds a collaborator. If apiKey or cseID is empty,
// Search always returns an empty list without making a call.
func NewSearchCollaborator(apiKey, cseID string, resultCount, snippetCap int, logger *zap.Logger) *SearchCollaborator {
	if resultCount <= 0 {
		resultCount = 5
	}
	if resultCount > 10 {
		resultCount = 10
	}
	return &SearchCollaborator{apiKey: apiKey, cseID: cseID, resultCount: int64(resultCount), snippetCap: snippetCap, logger: logger}
}

// Available reports whether credentials are configured.
func (s *SearchCollaborator) Available() bool {
	return s.apiKey != "" && s.cseID != ""
}

// Search runs one blocking Custom Search v1 call. Intended to be invoked off
// the per-request goroutine's hot path the same way (e.g. from its own
// goroutine, awaited via a channel) the teacher isolates blocking tool
// calls in web_search_tool.go.
func (s *SearchCollaborator) Search(ctx context.Context, query, requestID string) []SearchResult {
	query = strings.TrimSpace(query)
	if query == "" || !s.Available() {
		return nil
	}

	svc, err := customsearch.NewService(ctx, option.WithAPIKey(s.apiKey))
	if err != nil {
		s.logger.Warn("web search: building client failed", zap.String("request_id", requestID), zap.Error(err))
		return nil
	}

	resp, err := svc.Cse.List().Cx(s.cseID).Q(query).Num(s.resultCount).Context(ctx).Do()
	if err != nil {
		s.logStatusError(requestID, err)
		return nil
	}

	results := make([]SearchResult, 0, len(resp.Items))
	for i, item := range resp.Items {
		results = append(results, SearchResult{
			Index:   i + 1,
			Title:   item.Title,
			Href:    item.Link,
			Snippet: truncateSnippet(item.Snippet, s.snippetCap),
		})
	}
	return results
}

func (s *SearchCollaborator) logStatusError(requestID string, err error) {
	if gerr, ok := err.(*googleapi.Error); ok {
		s.logger.Warn("web search: upstream HTTP error",
			zap.String("request_id", requestID),
			zap.Int("status", gerr.Code),
			zap.String("message", gerr.Message),
		)
		return
	}
	s.logger.Warn("web search: request failed", zap.String("request_id", requestID), zap.Error(err))
}

func truncateSnippet(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// isValidRealURL guards against placeholder hrefs ("#") when assembling the
// search-context system message (original_source/app1_backend/main.py
// is_valid_real_url).
func isValidRealURL(href string) bool {
	if href == "" || href == "#" {
		return false
	}
	return strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://")
}
