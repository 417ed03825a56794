package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jellyfish-p/web-proxy-api/internal/config"
	"github.com/jellyfish-p/web-proxy-api/internal/dispatcher"
	"github.com/jellyfish-p/web-proxy-api/internal/executor"
	"github.com/jellyfish-p/web-proxy-api/internal/middle"
	"github.com/jellyfish-p/web-proxy-api/internal/registry"
	"github.com/jellyfish-p/web-proxy-api/internal/tokenestimate"
	"github.com/jellyfish-p/web-proxy-api/internal/translator/anthropic"
	"github.com/jellyfish-p/web-proxy-api/internal/translator/gemini"
	"github.com/jellyfish-p/web-proxy-api/internal/translator/openai"
)

// IngressHandlers implements the three public chat-completion entry points
// described by §4.8/§6.
type IngressHandlers struct {
	cfg  *config.Config
	disp *dispatcher.Dispatcher
	reg  *registry.Registry
}

// NewIngressHandlers constructs IngressHandlers.
func NewIngressHandlers(cfg *config.Config, disp *dispatcher.Dispatcher, reg *registry.Registry) *IngressHandlers {
	return &IngressHandlers{cfg: cfg, disp: disp, reg: reg}
}

// deepSeekOwnerTag is the tag cmd/server registers the DeepSeek adapter
// under; used here to recognize when §4.5's caller-bearer-as-upstream-token
// exception applies.
const deepSeekOwnerTag = "deepseek"

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	return strings.TrimPrefix(h, "Bearer ")
}

// authorizeCaller enforces the CallerAuth taxonomy (§7): a missing bearer
// is always rejected. A bearer that isn't one of config.keys is still
// accepted when modelID resolves to the DeepSeek adapter, since §4.5 step 1
// uses such a bearer directly as the upstream DeepSeek token rather than
// rejecting it.
func (h *IngressHandlers) authorizeCaller(c *gin.Context, callerAuth, modelID string) bool {
	if callerAuth == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "missing API key"}})
		return false
	}
	if h.cfg.HasKey(callerAuth) {
		return true
	}
	if h.reg.OwnerTag(modelID) == deepSeekOwnerTag {
		return true
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "invalid API key"}})
	return false
}

// ChatCompletions handles POST /v1/chat/completions.
func (h *IngressHandlers) ChatCompletions(c *gin.Context) {
	callerAuth := bearerToken(c)
	var req openai.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	if !h.authorizeCaller(c, callerAuth, req.Model) {
		return
	}
	h.run(c, callerAuth, openai.ToMiddle(req), req.Stream, formatOpenAI)
}

// Messages handles POST /v1/messages.
func (h *IngressHandlers) Messages(c *gin.Context) {
	callerAuth := bearerToken(c)
	var req anthropic.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	if !h.authorizeCaller(c, callerAuth, req.Model) {
		return
	}
	h.run(c, callerAuth, anthropic.ToMiddle(req), req.Stream, formatAnthropic)
}

// geminiAuthKey accepts the caller key via ?key=, x-goog-api-key,
// x-api-key, or Authorization: Bearer, per §4.8.
func geminiAuthKey(c *gin.Context) string {
	if k := c.Query("key"); k != "" {
		return k
	}
	if k := c.GetHeader("x-goog-api-key"); k != "" {
		return k
	}
	if k := c.GetHeader("x-api-key"); k != "" {
		return k
	}
	return bearerToken(c)
}

// GenerateContent handles POST /v1beta/models/{model}:generateContent and
// :streamGenerateContent (streaming forced by the latter).
func (h *IngressHandlers) GenerateContent(c *gin.Context) {
	modelAndVerb := c.Param("modelAndVerb")
	modelID, verb, ok := splitModelVerb(modelAndVerb)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "malformed model:verb path"}})
		return
	}
	if !h.authorizeCaller(c, geminiAuthKey(c), modelID) {
		return
	}
	stream := verb == "streamGenerateContent"

	var req gemini.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	content := gemini.ToMiddle(modelID, req)
	h.run(c, geminiAuthKey(c), content, stream, formatGemini)
}

func splitModelVerb(raw string) (model, verb string, ok bool) {
	raw = strings.TrimPrefix(raw, "/")
	idx := strings.LastIndex(raw, ":")
	if idx < 0 {
		return "", "", false
	}
	return raw[:idx], raw[idx+1:], true
}

type responseFormat int

const (
	formatOpenAI responseFormat = iota
	formatAnthropic
	formatGemini
)

func (h *IngressHandlers) run(c *gin.Context, callerAuth string, content middle.Content, stream bool, format responseFormat) {
	content.Stream = stream

	result, adapter, err := h.disp.Dispatch(c.Request.Context(), callerAuth, content)
	if err != nil {
		writeError(c, err)
		return
	}
	if adapter != nil && adapter.Release != nil {
		defer adapter.Release(result.State)
	}

	if stream {
		switch format {
		case formatGemini:
			streamGeminiSSE(c, result)
		default:
			// Anthropic streaming is served as the same OpenAI-shaped SSE
			// frame; callers of /v1/messages that request streaming are
			// out of this adapter layer's documented scope beyond relay.
			streamOpenAISSE(c, result)
		}
		return
	}

	completion, err := drainNonStream(result, content)
	if err != nil {
		writeError(c, err)
		return
	}

	switch format {
	case formatAnthropic:
		c.JSON(http.StatusOK, anthropic.CompletionToJSON(completion))
	case formatGemini:
		c.JSON(http.StatusOK, gemini.CompletionToJSON(completion))
	default:
		c.JSON(http.StatusOK, openai.CompletionToJSON(completion))
	}
}

// drainNonStream aggregates result.Chunks and fills in a prompt-token
// estimate when the upstream never reported usage.
func drainNonStream(result *executor.Result, content middle.Content) (middle.Completion, error) {
	completion, err := dispatcher.Aggregate(result)
	if err != nil {
		return middle.Completion{}, err
	}
	if completion.Usage.PromptTokens == 0 && completion.Usage.CompletionTokens == 0 {
		completion.Usage.PromptTokens = tokenestimate.Messages(content.Messages)
		completion.Usage.CompletionTokens = tokenestimate.Text(completion.Content + completion.ReasoningContent)
		completion.Usage.TotalTokens = completion.Usage.PromptTokens + completion.Usage.CompletionTokens
	}
	return completion, nil
}

// Models handles GET /v1/models.
func (h *IngressHandlers) Models(c *gin.Context) {
	entries := h.reg.List()
	data := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		data = append(data, gin.H{
			"id":       e.ModelID,
			"object":   "model",
			"created":  e.CreatedAt.Unix(),
			"owned_by": e.OwnerTag,
		})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}
