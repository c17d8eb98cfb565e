package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"API_TIMEOUT", "READ_TIMEOUT", "MAX_CONNECTIONS", "DEFAULT_OPENAI_API_BASE_URL",
		"GOOGLE_API_KEY", "GOOGLE_CSE_ID", "SEARCH_RESULT_COUNT", "SEARCH_SNIPPET_MAX_LENGTH",
		"MAX_SSE_LINE_LENGTH", "THINKING_PROCESS_SEPARATOR", "LOG_LEVEL", "LOG_FORMAT",
		"HOST", "PORT", "ENABLE_LATEX_REWRITE",
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APITimeoutSeconds != 300 {
		t.Errorf("got API_TIMEOUT %d", cfg.APITimeoutSeconds)
	}
	if cfg.MaxSSELineLength != 1048576 {
		t.Errorf("got MAX_SSE_LINE_LENGTH %d", cfg.MaxSSELineLength)
	}
	if cfg.ThinkingProcessSeparator != "--- FINAL ANSWER ---" {
		t.Errorf("got separator %q", cfg.ThinkingProcessSeparator)
	}
	if cfg.EnableLatexRewrite {
		t.Errorf("expected latex rewrite disabled by default")
	}
	if cfg.SearchResultCount != 5 {
		t.Errorf("got SEARCH_RESULT_COUNT %d", cfg.SearchResultCount)
	}
}

func TestLoad_ClampsSearchResultCount(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEARCH_RESULT_COUNT", "50")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SearchResultCount != 10 {
		t.Errorf("expected clamp to 10, got %d", cfg.SearchResultCount)
	}
}

func TestLoad_ReadsOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ENABLE_LATEX_REWRITE", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("got port %q", cfg.Port)
	}
	if !cfg.EnableLatexRewrite {
		t.Errorf("expected latex rewrite enabled")
	}
}
