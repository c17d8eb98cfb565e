// Package config loads the process-wide settings from environment
// variables. The proxy is stateless between requests and has no config
// files — every knob in this struct corresponds to one entry in spec.md
// §6.3, except LOG_FORMAT and ENABLE_LATEX_REWRITE, which are additions of
// this module.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds every environment-sourced setting the proxy reads once at
// startup. Per-request overrides (provider, model, api_key, ...) never live
// here — they arrive on CanonicalRequest.
type Config struct {
	APITimeoutSeconds  int    `env:"API_TIMEOUT" envDefault:"300"`
	ReadTimeoutSeconds int    `env:"READ_TIMEOUT" envDefault:"60"`
	MaxConnections     int    `env:"MAX_CONNECTIONS" envDefault:"200"`
	DefaultOpenAIBase  string `env:"DEFAULT_OPENAI_API_BASE_URL" envDefault:"https://api.openai.com"`

	GoogleAPIKey string `env:"GOOGLE_API_KEY"`
	GoogleCSEID  string `env:"GOOGLE_CSE_ID"`

	SearchResultCount      int `env:"SEARCH_RESULT_COUNT" envDefault:"5"`
	SearchSnippetMaxLength int `env:"SEARCH_SNIPPET_MAX_LENGTH" envDefault:"200"`

	MaxSSELineLength int `env:"MAX_SSE_LINE_LENGTH" envDefault:"1048576"`

	ThinkingProcessSeparator string `env:"THINKING_PROCESS_SEPARATOR" envDefault:"--- FINAL ANSWER ---"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port string `env:"PORT" envDefault:"8080"`

	// EnableLatexRewrite is the switch for the optional LaTeX→Unicode
	// post-processor noted as an open question in spec.md §9. Defaults to
	// false. No rewriter is wired to it: nothing reads this field, so
	// setting it does not change the output.
	EnableLatexRewrite bool `env:"ENABLE_LATEX_REWRITE" envDefault:"false"`
}

// Load reads Config from the environment, applying defaults for anything
// unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config from environment: %w", err)
	}
	if cfg.SearchResultCount > 10 {
		cfg.SearchResultCount = 10
	}
	return cfg, nil
}
