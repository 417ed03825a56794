package deepseek

import (
	"context"
	"strings"
	"testing"

	"github.com/jellyfish-p/web-proxy-api/internal/executor"
	"github.com/jellyfish-p/web-proxy-api/internal/middle"
)

func drainChunks(t *testing.T, body string, req middle.Content, thinking, search bool) []executor.StreamChunk {
	t.Helper()
	out := make(chan executor.StreamChunk, 64)
	err := streamCompletion(context.Background(), strings.NewReader(body), req, thinking, search, out)
	if err != nil {
		t.Fatalf("streamCompletion() error = %v", err)
	}
	close(out)
	var chunks []executor.StreamChunk
	for c := range out {
		chunks = append(chunks, c)
	}
	return chunks
}

func TestStreamCompletionEmitsContentThenFinal(t *testing.T) {
	body := `data: {"p":"response/content","v":"hel"}
data: {"p":"response/content","v":"lo"}
data: {"v":[{"p":"status","v":"FINISHED"}]}
`
	req := middle.Content{Model: "deepseek-chat", Messages: []middle.Message{{Role: middle.RoleUser, Content: "hi"}}}
	chunks := drainChunks(t, body, req, false, false)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[0].Chunk.Delta.Role != "assistant" {
		t.Fatalf("first chunk role = %q, want assistant", chunks[0].Chunk.Delta.Role)
	}
	if chunks[0].Chunk.Delta.Content != "hel" || chunks[1].Chunk.Delta.Content != "lo" {
		t.Fatalf("content deltas = %q, %q", chunks[0].Chunk.Delta.Content, chunks[1].Chunk.Delta.Content)
	}
	last := chunks[len(chunks)-1]
	if !last.Chunk.Done || last.Chunk.FinishReason != "stop" {
		t.Fatalf("final chunk = %+v, want done+stop", last.Chunk)
	}
	if last.Chunk.Usage == nil || last.Chunk.Usage.CompletionTokens == 0 {
		t.Fatalf("final chunk usage = %+v, want non-zero completion tokens", last.Chunk.Usage)
	}
}

func TestStreamCompletionSkipsThinkingWhenDisabled(t *testing.T) {
	body := `data: {"p":"response/thinking_content","v":"pondering"}
data: {"v":[{"p":"status","v":"FINISHED"}]}
`
	req := middle.Content{Model: "deepseek-chat"}
	chunks := drainChunks(t, body, req, false, false)

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 (final only)", len(chunks))
	}
}

func TestStreamCompletionStripsCitationsWhenSearching(t *testing.T) {
	body := `data: {"p":"response/content","v":"[citation:1] see above"}
data: {"v":[{"p":"status","v":"FINISHED"}]}
`
	req := middle.Content{Model: "deepseek-chat"}
	chunks := drainChunks(t, body, req, false, true)

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want the citation line skipped leaving only the final chunk", len(chunks))
	}
}
