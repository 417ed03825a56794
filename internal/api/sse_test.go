package api

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jellyfish-p/web-proxy-api/internal/executor"
)

func TestWriteErrorUsesAdapterErrorStatus(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	writeError(c, executor.ErrBadRequest("bad things"))

	if w.Code != 400 {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "bad things") {
		t.Fatalf("body = %q, want message included", w.Body.String())
	}
}

func TestWriteErrorDefaultsTo500ForUntypedError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	writeError(c, errors.New("boom"))

	if w.Code != 500 {
		t.Fatalf("status = %d, want 500 for an untyped error", w.Code)
	}
}

func TestStreamOpenAISSEWritesDoneTerminator(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)

	out := make(chan executor.StreamChunk)
	close(out)

	streamOpenAISSE(c, &executor.Result{Chunks: out})

	if !strings.Contains(w.Body.String(), "data: [DONE]") {
		t.Fatalf("body = %q, want [DONE] terminator", w.Body.String())
	}
}
