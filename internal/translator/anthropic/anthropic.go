// Package anthropic converts between the Anthropic /v1/messages wire format
// and the normalized middle.Content/Chunk/Completion shapes.
package anthropic

import (
	"encoding/json"

	"github.com/jellyfish-p/web-proxy-api/internal/middle"
)

// Request is the Anthropic /v1/messages request body.
type Request struct {
	Model    string  `json:"model"`
	System   any     `json:"system,omitempty"`
	Messages []Msg   `json:"messages"`
	Stream   bool    `json:"stream,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// Msg is one Anthropic message; Content is either a string or a block array.
type Msg struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ToMiddle converts an Anthropic request into the normalized form, per
// §4.8: system string/array flattens to a system message; tool_use becomes
// an assistant tool_call; tool_result becomes a tool message, parsed as JSON
// when possible into a synthetic "toolResult" function_result tool call.
func ToMiddle(req Request) middle.Content {
	var messages []middle.Message

	if sys := flattenText(req.System); sys != "" {
		messages = append(messages, middle.Message{Role: middle.RoleSystem, Content: sys})
	}

	for _, m := range req.Messages {
		messages = append(messages, convertMessage(m)...)
	}

	return middle.Content{
		Model:       req.Model,
		Messages:    messages,
		Stream:      req.Stream,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
}

func convertMessage(m Msg) []middle.Message {
	switch v := m.Content.(type) {
	case string:
		return []middle.Message{{Role: middle.Role(m.Role), Content: v}}
	case []any:
		return convertBlocks(m.Role, v)
	default:
		return nil
	}
}

func convertBlocks(role string, blocks []any) []middle.Message {
	var out []middle.Message
	var textParts []string

	for _, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch block["type"] {
		case "text":
			if text, ok := block["text"].(string); ok {
				textParts = append(textParts, text)
			}
		case "tool_use":
			name, _ := block["name"].(string)
			id, _ := block["id"].(string)
			args, _ := json.Marshal(block["input"])
			out = append(out, middle.Message{
				Role: middle.RoleAssistant,
				ToolCalls: []middle.ToolCall{{
					ID:       id,
					Type:     "function",
					Function: &middle.FunctionCall{Name: name, Arguments: string(args)},
				}},
			})
		case "tool_result":
			id, _ := block["tool_use_id"].(string)
			out = append(out, convertToolResult(id, block["content"]))
		}
	}

	if len(textParts) > 0 {
		out = append([]middle.Message{{Role: middle.Role(role), Content: joinLines(textParts)}}, out...)
	}
	return out
}

// convertToolResult parses content as JSON when possible, producing a
// synthetic "toolResult" function_result tool call; otherwise it keeps the
// raw text.
func convertToolResult(toolUseID string, content any) middle.Message {
	text := flattenText(content)

	var parsed any
	if json.Unmarshal([]byte(text), &parsed) == nil {
		args, _ := json.Marshal(parsed)
		return middle.Message{
			Role:       middle.RoleTool,
			ToolCallID: toolUseID,
			Content:    text,
			ToolCalls: []middle.ToolCall{{
				Type:     "function",
				Function: &middle.FunctionCall{Name: "toolResult", Arguments: string(args)},
			}},
		}
	}
	return middle.Message{Role: middle.RoleTool, ToolCallID: toolUseID, Content: text}
}

func flattenText(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				if m["type"] == "text" {
					if text, ok := m["text"].(string); ok {
						parts = append(parts, text)
					}
				}
			} else if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return joinLines(parts)
	default:
		return ""
	}
}

func joinLines(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n"
		}
		out += p
	}
	return out
}

// CompletionToJSON converts an aggregated middle.Completion into the
// Anthropic non-streaming /v1/messages response body.
func CompletionToJSON(c middle.Completion) map[string]any {
	return map[string]any{
		"id":    c.ID,
		"type":  "message",
		"role":  "assistant",
		"model": c.Model,
		"content": []any{
			map[string]any{"type": "text", "text": c.Content},
		},
		"stop_reason":   stopReason(c.FinishReason),
		"stop_sequence": nil,
		"usage": map[string]any{
			"input_tokens":  c.Usage.PromptTokens,
			"output_tokens": c.Usage.CompletionTokens,
		},
	}
}

func stopReason(openAIReason string) string {
	switch openAIReason {
	case "stop":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return openAIReason
	}
}
