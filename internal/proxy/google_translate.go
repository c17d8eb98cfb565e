package proxy

import (
	"encoding/json"
	"strings"
)

const googleAPIBaseURL = "https://generativelanguage.googleapis.com"

type googlePart struct {
	Text             string              `json:"text,omitempty"`
	FunctionCall     *googleFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *googleFuncResponse `json:"functionResponse,omitempty"`
}

type googleFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type googleFuncResponse struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

type googleContent struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

type googleFunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type googleTool struct {
	FunctionDeclarations []googleFunctionDeclaration `json:"functionDeclarations"`
}

type googleFunctionCallingConfig struct {
	Mode                 string   `json:"mode"`
	AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
}

type googleToolConfig struct {
	FunctionCallingConfig googleFunctionCallingConfig `json:"functionCallingConfig"`
}

type googleGenerationConfig struct {
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"topP,omitempty"`
	MaxOutputTokens  *int            `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

// BuildGoogleRequest translates a CanonicalRequest into the Gemini
// streamGenerateContent body and URL (spec.md §4.2).
func BuildGoogleRequest(req *CanonicalRequest, mode ReasoningMode, separator string) (url string, body []byte, err error) {
	url = googleAPIBaseURL + "/v1beta/models/" + req.Model + ":streamGenerateContent?alt=sse&key=" + req.APIKey

	contents, warnings := convertMessagesToGoogleContents(req.Messages)
	_ = warnings // discarded: neither returned to the caller nor logged

	switch mode {
	case ReasoningGoogleJSON:
		contents = prependGoogleSystemInstruction(contents, googleGuidedSystemInstruction)
	case ReasoningLegacySeparator:
		contents = appendLegacySeparatorInstructionGoogle(contents, separator)
	}

	out := map[string]json.RawMessage{}
	mustSetRaw(out, "contents", contents)

	if len(req.Tools) > 0 {
		decls := convertOpenAIToolsToGoogleDeclarations(req.Tools)
		if len(decls) > 0 {
			mustSetRaw(out, "tools", []googleTool{{FunctionDeclarations: decls}})
		}
		if req.ToolChoice != nil {
			cfg := convertToolChoiceToGoogleConfig(req.ToolChoice, decls)
			mustSetRaw(out, "toolConfig", googleToolConfig{FunctionCallingConfig: cfg})
		}
	}

	genCfg := googleGenerationConfig{
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxOutputTokens: req.MaxTokens,
	}
	if mode == ReasoningGoogleJSON {
		genCfg.ResponseMimeType = "application/json"
		genCfg.ResponseSchema = json.RawMessage(googleGuidedSchemaJSON)
	}
	mustSetRaw(out, "generationConfig", genCfg)

	body, err = json.Marshal(out)
	return url, body, err
}

// prependGoogleSystemInstruction inserts a user-role block carrying the
// guided-reasoning instruction at the head of contents — Gemini's v1beta
// streaming surface has no system role (spec.md §4.2), so system-equivalent
// instructions are modeled as a leading user-role block, consistent with
// how an ordinary ApiMessage{role:system} is converted below.
func prependGoogleSystemInstruction(contents []googleContent, instruction string) []googleContent {
	block := googleContent{Role: "user", Parts: []googlePart{{Text: "[System Instruction or Context]\n" + instruction}}}
	return append([]googleContent{block}, contents...)
}

// appendLegacySeparatorInstructionGoogle is the Google-side counterpart of
// appendLegacySeparatorInstruction in openai_translate.go: it appends the
// separator instruction to the last user-role content's final text part, so
// ReasoningLegacySeparator is a real alternative on the google provider, not
// just an OpenAI-only mode.
func appendLegacySeparatorInstructionGoogle(contents []googleContent, separator string) []googleContent {
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i].Role != "user" {
			continue
		}
		parts := contents[i].Parts
		for j := len(parts) - 1; j >= 0; j-- {
			if parts[j].FunctionCall == nil && parts[j].FunctionResponse == nil {
				parts[j].Text += legacySeparatorInstruction(separator)
				return contents
			}
		}
		contents[i].Parts = append(parts, googlePart{Text: legacySeparatorInstruction(separator)})
		return contents
	}
	return contents
}

// convertMessagesToGoogleContents implements the per-role mapping of
// spec.md §4.2: user→{role:user}; system→a user-role block prefixed with
// "[System Instruction or Context]"; assistant→{role:model} with optional
// text plus parsed functionCall parts; tool→{role:user} with a
// functionResponse part, wrapping unparseable content as {raw_response}.
func convertMessagesToGoogleContents(messages []ApiMessage) (contents []googleContent, warnings []string) {
	for _, m := range messages {
		if m.IsEmpty() && m.Role != "tool" {
			continue
		}
		switch m.Role {
		case "user":
			contents = append(contents, googleContent{Role: "user", Parts: []googlePart{{Text: m.Content}}})
		case "system":
			if m.Content == "" {
				continue
			}
			contents = append(contents, googleContent{
				Role:  "user",
				Parts: []googlePart{{Text: "[System Instruction or Context]\n" + m.Content}},
			})
		case "assistant":
			var parts []googlePart
			if m.Content != "" {
				parts = append(parts, googlePart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args, err := normalizeToolCallArgs(tc.Function.Arguments)
				if err != nil {
					warnings = append(warnings, "assistant tool_call arguments not valid JSON: "+tc.Function.Name)
					args = json.RawMessage(`{}`)
				}
				parts = append(parts, googlePart{FunctionCall: &googleFunctionCall{Name: tc.Function.Name, Args: args}})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, googleContent{Role: "model", Parts: parts})
		case "tool":
			response, err := normalizeToolCallArgs(m.Content)
			if err != nil {
				warnings = append(warnings, "tool content not valid JSON, wrapping as raw_response: "+m.Name)
				wrapped, _ := json.Marshal(map[string]string{"raw_response": m.Content})
				response = wrapped
			}
			contents = append(contents, googleContent{
				Role:  "user",
				Parts: []googlePart{{FunctionResponse: &googleFuncResponse{Name: m.Name, Response: response}}},
			})
		}
	}
	return contents, warnings
}

func normalizeToolCallArgs(s string) (json.RawMessage, error) {
	if strings.TrimSpace(s) == "" {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid([]byte(s)) {
		return nil, errNotValidJSON
	}
	return json.RawMessage(s), nil
}

var errNotValidJSON = jsonParseError{}

type jsonParseError struct{}

func (jsonParseError) Error() string { return "not valid JSON" }

// convertOpenAIToolsToGoogleDeclarations filters to type:"function" entries
// and drops unnamed ones, per spec.md §4.2.
func convertOpenAIToolsToGoogleDeclarations(tools []ToolDef) []googleFunctionDeclaration {
	var decls []googleFunctionDeclaration
	for _, t := range tools {
		if t.Type != "function" || t.Function.Name == "" {
			continue
		}
		decls = append(decls, googleFunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}
	return decls
}

// convertToolChoiceToGoogleConfig implements the tool-choice mapping table
// of spec.md §4.2/§8.6.
func convertToolChoiceToGoogleConfig(choice *ToolChoice, declared []googleFunctionDeclaration) googleFunctionCallingConfig {
	hasDeclarations := len(declared) > 0

	if choice.Function != nil {
		name := choice.Function.Name
		if name != "" && declarationNamed(declared, name) {
			return googleFunctionCallingConfig{Mode: "ANY", AllowedFunctionNames: []string{name}}
		}
		return googleFunctionCallingConfig{Mode: "AUTO"}
	}

	switch choice.Keyword {
	case "none":
		return googleFunctionCallingConfig{Mode: "NONE"}
	case "auto":
		return googleFunctionCallingConfig{Mode: "AUTO"}
	case "required":
		if hasDeclarations {
			return googleFunctionCallingConfig{Mode: "ANY"}
		}
		return googleFunctionCallingConfig{Mode: "AUTO"}
	default:
		return googleFunctionCallingConfig{Mode: "AUTO"}
	}
}

func declarationNamed(decls []googleFunctionDeclaration, name string) bool {
	for _, d := range decls {
		if d.Name == name {
			return true
		}
	}
	return false
}
