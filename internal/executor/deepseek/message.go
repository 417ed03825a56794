package deepseek

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jellyfish-p/web-proxy-api/internal/middle"
)

const (
	assistantOpen  = "<｜Assistant｜>"
	assistantClose = "<｜end▁of▁sentence｜>"
	userPrefix     = "<｜User｜>"
)

// imageMarkdown matches markdown image syntax so it can be downgraded to a
// plain link the DeepSeek prompt format accepts.
var imageMarkdown = regexp.MustCompile(`!(\[[^\]]*\]\([^)]*\))`)

// buildPrompt implements §4.5 step 2: merge adjacent same-role messages,
// render each role in DeepSeek's special-token prompt format, and flatten
// the result into a single string.
func buildPrompt(messages []middle.Message) string {
	merged := mergeAdjacent(messages)

	var b strings.Builder
	first := true
	for _, m := range merged {
		text := downgradeImages(m.Content)
		switch m.Role {
		case middle.RoleAssistant:
			b.WriteString(assistantOpen)
			b.WriteString(text)
			b.WriteString(assistantClose)
		case middle.RoleTool:
			id := m.ToolCallID
			if id == "" {
				id = m.Name
			}
			fmt.Fprintf(&b, "<|tool_outputs id=%s|>%s", id, text)
		default: // system, user
			if first {
				b.WriteString(text)
			} else {
				b.WriteString(userPrefix)
				b.WriteString(text)
			}
		}
		first = false
	}
	return b.String()
}

// mergeAdjacent joins consecutive same-role messages with a blank line.
func mergeAdjacent(messages []middle.Message) []middle.Message {
	if len(messages) == 0 {
		return nil
	}
	out := make([]middle.Message, 0, len(messages))
	cur := messages[0]
	for _, m := range messages[1:] {
		if m.Role == cur.Role {
			cur.Content = cur.Content + "\n\n" + m.Content
			continue
		}
		out = append(out, cur)
		cur = m
	}
	out = append(out, cur)
	return out
}

// downgradeImages rewrites markdown image syntax ![alt](url) to the plain
// link form [alt](url); DeepSeek's prompt format does not render images.
func downgradeImages(text string) string {
	return imageMarkdown.ReplaceAllString(text, "$1")
}
