package deepseek

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jellyfish-p/web-proxy-api/internal/executor"
	"github.com/jellyfish-p/web-proxy-api/internal/middle"
	"github.com/jellyfish-p/web-proxy-api/internal/tokenestimate"
)

// streamCompletion implements §4.5 step 6: translate DeepSeek's
// `data: {"p":path,"v":value}` lines into normalized middle.Chunk events,
// emitting role:"assistant" exactly once on the first non-empty delta and a
// single terminal chunk carrying finish_reason and usage.
func streamCompletion(ctx context.Context, body io.Reader, req middle.Content, thinking, search bool, out chan<- executor.StreamChunk) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var contentBuf, reasoningBuf strings.Builder
	roleSent := false

	emit := func(delta middle.Delta) {
		if !roleSent && (delta.Content != "" || delta.ReasoningContent != "") {
			delta.Role = "assistant"
			roleSent = true
		}
		select {
		case out <- executor.StreamChunk{Chunk: middle.Chunk{Model: req.Model, Delta: delta}}:
		case <-ctx.Done():
		}
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		parsed := gjson.Parse(payload)
		if finished, reason := isFinished(parsed); finished {
			usage := &middle.Usage{
				PromptTokens:     tokenestimate.Text(promptText(req)),
				CompletionTokens: tokenestimate.Text(contentBuf.String() + reasoningBuf.String()),
			}
			usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
			select {
			case out <- executor.StreamChunk{Chunk: middle.Chunk{
				Model:        req.Model,
				FinishReason: reason,
				Usage:        usage,
				Done:         true,
			}}:
			case <-ctx.Done():
			}
			return nil
		}

		path := parsed.Get("p").String()
		value := parsed.Get("v")

		switch {
		case path == "response/thinking_content" && value.Type == gjson.String:
			if thinking {
				reasoningBuf.WriteString(value.String())
				emit(middle.Delta{ReasoningContent: value.String()})
			}
		case path == "response/search_status":
			// ignored, per §4.5 step 6
		case (path == "response/content" || path == "") && value.Type == gjson.String:
			text := value.String()
			if search && strings.HasPrefix(text, "[citation:") {
				continue
			}
			contentBuf.WriteString(text)
			emit(middle.Delta{Content: text})
		}
	}
	return scanner.Err()
}

// isFinished reports whether parsed carries the terminal
// {"v":[{"p":"status","v":"FINISHED"}]} marker, and its finish reason.
func isFinished(parsed gjson.Result) (bool, string) {
	v := parsed.Get("v")
	if !v.IsArray() {
		return false, ""
	}
	finished := false
	v.ForEach(func(_, item gjson.Result) bool {
		if item.Get("p").String() == "status" && item.Get("v").String() == "FINISHED" {
			finished = true
			return false
		}
		return true
	})
	if finished {
		return true, "stop"
	}
	return false, ""
}

func promptText(req middle.Content) string {
	return buildPrompt(req.Messages)
}
