package proxy

import "strings"

// ReasoningMode selects which guided-reasoning branch (if any) governs a
// request, per spec.md §4.5.
type ReasoningMode int

const (
	ReasoningNone ReasoningMode = iota
	ReasoningGoogleJSON
	ReasoningLegacySeparator
)

// isGeminiGuidedModel matches the Gemini "pro/thinking" model family spec.md
// §4.5 calls out for automatic JSON-schema guided reasoning.
func isGeminiGuidedModel(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "pro") || strings.Contains(m, "thinking")
}

func isReasonerModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "reasoner")
}

// DecideReasoningMode implements spec.md §4.7 step 4. force is the
// three-valued force_custom_reasoning_prompt field: nil means unset.
//
// An explicit force=true always selects the legacy separator mode — it is
// the caller's way of overriding automatic detection in favor of the
// sentinel-based contract. Automatic Google JSON-schema mode only engages
// when force is unset or explicitly true-eligible (not false), and only for
// a qualifying Gemini model on the google provider.
func DecideReasoningMode(provider Provider, model string, force *bool) ReasoningMode {
	if force != nil && *force {
		return ReasoningLegacySeparator
	}
	if provider == ProviderGoogle && isGeminiGuidedModel(model) {
		if force == nil || *force {
			return ReasoningGoogleJSON
		}
	}
	return ReasoningNone
}

// googleGuidedSchemaJSON is the two-field {reasoning, answer} response schema
// forced onto the model in ReasoningGoogleJSON mode.
const googleGuidedSchemaJSON = `{"type":"object","properties":{"reasoning":{"type":"string"},"answer":{"type":"string"}},"required":["reasoning","answer"]}`

const googleGuidedSystemInstruction = "You must respond with a single JSON object of exactly two string fields: " +
	"\"reasoning\" (your step-by-step thinking) and \"answer\" (your final answer to the user). " +
	"Do not include any text outside that JSON object."

// legacySeparatorInstruction is appended to the last user message in
// ReasoningLegacySeparator mode, asking the model to emit reasoning, then
// the separator, then the final answer.
func legacySeparatorInstruction(separator string) string {
	return "\n\nFirst, think through this step by step. Then write the exact line `" + separator +
		"` on its own, followed by your final answer to the user."
}
