// Package gemini converts between the Gemini generateContent wire format and
// the normalized middle.Content/Chunk/Completion shapes.
package gemini

import (
	"encoding/json"

	"github.com/jellyfish-p/web-proxy-api/internal/middle"
)

// Request is the Gemini :generateContent request body.
type Request struct {
	SystemInstruction *Content    `json:"systemInstruction,omitempty"`
	Contents          []Content   `json:"contents"`
	ToolConfig        *ToolConfig `json:"toolConfig,omitempty"`
	Tools             []Tool      `json:"tools,omitempty"`
}

// Content is one turn; Parts may carry text, inlineData, functionCall, or
// functionResponse.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a single Gemini content part.
type Part struct {
	Text             string            `json:"text,omitempty"`
	InlineData       *InlineData       `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// InlineData carries base64 media.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FunctionCall mirrors Gemini's {name, args}.
type FunctionCall struct {
	Name string `json:"name"`
	Args any    `json:"args"`
}

// FunctionResponse mirrors Gemini's {name, response}.
type FunctionResponse struct {
	Name     string `json:"name"`
	Response any    `json:"response"`
}

// Tool is a Gemini function-declaration tool.
type Tool struct {
	FunctionDeclarations []struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Parameters  any    `json:"parameters,omitempty"`
	} `json:"functionDeclarations"`
}

// ToolConfig mirrors Gemini's functionCallingConfig.
type ToolConfig struct {
	FunctionCallingConfig struct {
		Mode                 string   `json:"mode"`
		AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
	} `json:"functionCallingConfig"`
}

// ToMiddle converts a Gemini request into the normalized form, per §4.8:
// systemInstruction becomes a system message; each Part becomes its own
// message; inlineData/functionCall/functionResponse map onto tool_calls and
// tool messages; toolConfig mode NONE/AUTO/ANY maps to none/auto/required,
// with a single allowed function under ANY becoming a forced function
// choice.
func ToMiddle(modelID string, req Request) middle.Content {
	var messages []middle.Message

	if req.SystemInstruction != nil {
		if text := joinPartsText(req.SystemInstruction.Parts); text != "" {
			messages = append(messages, middle.Message{Role: middle.RoleSystem, Content: text})
		}
	}

	for _, c := range req.Contents {
		role := geminiRoleToMiddle(c.Role)
		for _, p := range c.Parts {
			messages = append(messages, convertPart(role, p))
		}
	}

	content := middle.Content{Model: modelID, Messages: messages}
	for _, t := range req.Tools {
		for _, fd := range t.FunctionDeclarations {
			content.Tools = append(content.Tools, middle.Tool{
				Name:        fd.Name,
				Description: fd.Description,
				Parameters:  fd.Parameters,
			})
		}
	}
	content.ToolChoice = convertToolConfig(req.ToolConfig)
	return content
}

func geminiRoleToMiddle(role string) middle.Role {
	if role == "model" {
		return middle.RoleAssistant
	}
	return middle.RoleUser
}

func convertPart(role middle.Role, p Part) middle.Message {
	switch {
	case p.InlineData != nil:
		return middle.Message{
			Role: middle.RoleAssistant,
			ToolCalls: []middle.ToolCall{{
				Type:   "inline_data",
				Inline: &middle.InlineData{MimeType: p.InlineData.MimeType, Data: p.InlineData.Data},
			}},
		}
	case p.FunctionCall != nil:
		args, _ := json.Marshal(p.FunctionCall.Args)
		return middle.Message{
			Role: middle.RoleAssistant,
			ToolCalls: []middle.ToolCall{{
				Type:     "function",
				Function: &middle.FunctionCall{Name: p.FunctionCall.Name, Arguments: string(args)},
			}},
		}
	case p.FunctionResponse != nil:
		resp, _ := json.Marshal(p.FunctionResponse.Response)
		return middle.Message{Role: middle.RoleTool, Name: p.FunctionResponse.Name, Content: string(resp)}
	default:
		return middle.Message{Role: role, Content: p.Text}
	}
}

func joinPartsText(parts []Part) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n"
		}
		out += p.Text
	}
	return out
}

func convertToolConfig(tc *ToolConfig) *middle.ToolChoice {
	if tc == nil {
		return nil
	}
	mode := tc.FunctionCallingConfig.Mode
	switch mode {
	case "NONE":
		return &middle.ToolChoice{Mode: "none"}
	case "ANY":
		if len(tc.FunctionCallingConfig.AllowedFunctionNames) == 1 {
			return &middle.ToolChoice{Mode: "function", FunctionName: tc.FunctionCallingConfig.AllowedFunctionNames[0]}
		}
		return &middle.ToolChoice{Mode: "required"}
	case "AUTO":
		return &middle.ToolChoice{Mode: "auto"}
	default:
		return nil
	}
}

// CompletionToJSON converts an aggregated middle.Completion into the Gemini
// non-streaming generateContent response body.
func CompletionToJSON(c middle.Completion) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": c.Content}},
				},
				"finishReason": "STOP",
				"index":        0,
			},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount":     c.Usage.PromptTokens,
			"candidatesTokenCount": c.Usage.CompletionTokens,
			"totalTokenCount":      c.Usage.TotalTokens,
		},
		"modelVersion": c.Model,
	}
}

// ChunkToSSE converts a normalized OpenAI-shaped SSE object (as produced by
// openai.ChunkToSSE) into a Gemini streamGenerateContent SSE frame, per
// testable property S6.
func ChunkToSSE(openAIChunk map[string]any) map[string]any {
	choices, _ := openAIChunk["choices"].([]any)
	text := ""
	if len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if delta, ok := choice["delta"].(map[string]any); ok {
				if c, ok := delta["content"].(string); ok {
					text = c
				}
			}
		}
	}
	candidate := map[string]any{
		"content": map[string]any{
			"role":  "model",
			"parts": []any{map[string]any{"text": text}},
		},
		"index": 0,
	}
	out := map[string]any{"candidates": []any{candidate}}
	if model, ok := openAIChunk["model"].(string); ok && model != "" {
		out["modelVersion"] = model
	}
	return out
}
