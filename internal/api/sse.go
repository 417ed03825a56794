package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jellyfish-p/web-proxy-api/internal/executor"
	"github.com/jellyfish-p/web-proxy-api/internal/translator/gemini"
	"github.com/jellyfish-p/web-proxy-api/internal/translator/openai"
)

// streamOpenAISSE drains result.Chunks and writes each as an OpenAI SSE
// frame, finishing with "data: [DONE]\n\n". Client disconnects cancel the
// request context, which the adapter's stream goroutine observes and exits
// on, per the cancellation contract in §5.
func streamOpenAISSE(c *gin.Context, result *executor.Result) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		sc, ok := <-result.Chunks
		if !ok {
			_, _ = w.Write([]byte("data: [DONE]\n\n"))
			return false
		}
		if sc.Err != nil {
			return false
		}
		raw, _ := json.Marshal(openai.ChunkToSSE(sc.Chunk))
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(raw)
		_, _ = w.Write([]byte("\n\n"))
		return true
	})
}

// streamGeminiSSE rewraps the OpenAI-shaped chunk frames as Gemini SSE
// frames, per testable property S6.
func streamGeminiSSE(c *gin.Context, result *executor.Result) {
	c.Header("Content-Type", "text/event-stream")
	c.Stream(func(w io.Writer) bool {
		sc, ok := <-result.Chunks
		if !ok {
			return false
		}
		if sc.Err != nil {
			return false
		}
		frame := gemini.ChunkToSSE(openai.ChunkToSSE(sc.Chunk))
		raw, _ := json.Marshal(frame)
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(raw)
		_, _ = w.Write([]byte("\n\n"))
		return true
	})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	var adapterErr *executor.Error
	if errors.As(err, &adapterErr) {
		status = adapterErr.Status
		msg = adapterErr.Message
	}
	c.JSON(status, gin.H{"error": gin.H{"message": msg}})
}
