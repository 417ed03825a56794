// Package openai converts between the OpenAI chat-completion wire format and
// the normalized middle.Content/Chunk/Completion shapes.
package openai

import (
	"github.com/jellyfish-p/web-proxy-api/internal/middle"
)

// Message is the OpenAI wire message shape.
type Message struct {
	Role       string     `json:"role"`
	Content    any        `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall mirrors OpenAI's {id, type, function:{name, arguments}} shape.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// Request is the OpenAI /v1/chat/completions request body.
type Request struct {
	Model            string      `json:"model"`
	Messages         []Message   `json:"messages"`
	Temperature      *float64    `json:"temperature,omitempty"`
	TopP             *float64    `json:"top_p,omitempty"`
	N                *int        `json:"n,omitempty"`
	Stream           bool        `json:"stream,omitempty"`
	PresencePenalty  *float64    `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64    `json:"frequency_penalty,omitempty"`
	Tools            []Tool      `json:"tools,omitempty"`
	ToolChoice       any         `json:"tool_choice,omitempty"`
	Seed             *int64      `json:"seed,omitempty"`
	ReasoningEffort  string      `json:"reasoning_effort,omitempty"`
}

// Tool is an OpenAI function tool definition.
type Tool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Parameters  any    `json:"parameters,omitempty"`
	} `json:"function"`
}

// ToMiddle converts an OpenAI request into the normalized intermediate
// format, per §4.8: text-only parts concatenate with "\n", tool_calls and
// tool_choice/tools are forwarded structurally.
func ToMiddle(req Request) middle.Content {
	messages := make([]middle.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, middle.Message{
			Role:       middle.Role(m.Role),
			Content:    flattenContent(m.Content),
			Name:       m.Name,
			ToolCalls:  convertToolCallsIn(m.ToolCalls),
			ToolCallID: m.ToolCallID,
		})
	}

	content := middle.Content{
		Model:            req.Model,
		Messages:         messages,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		N:                req.N,
		Stream:           req.Stream,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
		Seed:             req.Seed,
		ReasoningEffort:  req.ReasoningEffort,
	}
	for _, t := range req.Tools {
		content.Tools = append(content.Tools, middle.Tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}
	content.ToolChoice = convertToolChoiceIn(req.ToolChoice)
	return content
}

func flattenContent(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if m["type"] == "text" {
				if text, ok := m["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		return join(parts, "\n")
	default:
		return ""
	}
}

func join(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

func convertToolCallsIn(calls []ToolCall) []middle.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]middle.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, middle.ToolCall{
			ID:   c.ID,
			Type: "function",
			Function: &middle.FunctionCall{
				Name:      c.Function.Name,
				Arguments: c.Function.Arguments,
			},
		})
	}
	return out
}

func convertToolChoiceIn(raw any) *middle.ToolChoice {
	switch v := raw.(type) {
	case string:
		return &middle.ToolChoice{Mode: v}
	case map[string]any:
		fn, _ := v["function"].(map[string]any)
		name, _ := fn["name"].(string)
		return &middle.ToolChoice{Mode: "function", FunctionName: name}
	default:
		return nil
	}
}

// ChunkToSSE converts a normalized middle.Chunk into the OpenAI SSE "data:"
// JSON object (choices[0].delta / finish_reason / usage).
func ChunkToSSE(c middle.Chunk) map[string]any {
	delta := map[string]any{}
	if c.Delta.Role != "" {
		delta["role"] = c.Delta.Role
	}
	if c.Delta.Content != "" {
		delta["content"] = c.Delta.Content
	}
	if c.Delta.ReasoningContent != "" {
		delta["reasoning_content"] = c.Delta.ReasoningContent
	}

	choice := map[string]any{"index": 0, "delta": delta}
	if c.FinishReason != "" {
		choice["finish_reason"] = c.FinishReason
	} else {
		choice["finish_reason"] = nil
	}

	obj := map[string]any{
		"id":      c.ID,
		"object":  "chat.completion.chunk",
		"model":   c.Model,
		"choices": []any{choice},
	}
	if c.Usage != nil {
		obj["usage"] = map[string]any{
			"prompt_tokens":     c.Usage.PromptTokens,
			"completion_tokens": c.Usage.CompletionTokens,
			"total_tokens":      c.Usage.TotalTokens,
		}
	}
	return obj
}

// CompletionToJSON converts an aggregated middle.Completion into the
// non-streaming OpenAI chat.completion response body.
func CompletionToJSON(c middle.Completion) map[string]any {
	return map[string]any{
		"id":      c.ID,
		"object":  "chat.completion",
		"model":   c.Model,
		"choices": []any{
			map[string]any{
				"index": 0,
				"message": map[string]any{
					"role":              "assistant",
					"content":           c.Content,
					"reasoning_content": c.ReasoningContent,
				},
				"finish_reason": c.FinishReason,
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     c.Usage.PromptTokens,
			"completion_tokens": c.Usage.CompletionTokens,
			"total_tokens":      c.Usage.TotalTokens,
		},
	}
}
