package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHealthHandler_ReportsOkWithPoolTag(t *testing.T) {
	router := gin.New()
	router.GET("/health", healthHandler(func() bool { return true }))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("got %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"pool_tag":"`+poolTag+`"`) {
		t.Fatalf("expected pool_tag %q in body, got %s", poolTag, w.Body.String())
	}
}

func TestHealthHandler_ReportsWarningWhenUpstreamUnavailable(t *testing.T) {
	router := gin.New()
	router.GET("/health", healthHandler(func() bool { return false }))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"warning"`) {
		t.Fatalf("got %s", w.Body.String())
	}
}

func TestCorsMiddleware_SetsWildcardHeadersAndHandlesPreflight(t *testing.T) {
	router := gin.New()
	router.Use(corsMiddleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected preflight to short-circuit with 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}
