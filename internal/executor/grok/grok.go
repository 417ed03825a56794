package grok

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jellyfish-p/web-proxy-api/internal/config"
	"github.com/jellyfish-p/web-proxy-api/internal/executor"
	"github.com/jellyfish-p/web-proxy-api/internal/mediacache"
	"github.com/jellyfish-p/web-proxy-api/internal/middle"
	"github.com/jellyfish-p/web-proxy-api/internal/proxypool"
)

const ownerTag = "grok"

// Adapter wires the token store, ranking, HTTP client, and media cache
// together behind the executor.Adapter contract.
type Adapter struct {
	cfg       config.Grok
	store     *Store
	client    *Client
	cache     *mediacache.Cache
	refresher *Refresher
}

// New constructs a Grok Adapter.
func New(cfg config.Grok, store *Store) *Adapter {
	client := NewClient(cfg)
	cache := mediacache.New(mediacache.Options{
		BaseDir:      "data/temp",
		AssetBaseURL: "https://assets.grok.com",
		ImageMaxMB:   cfg.ImageCacheMaxMB,
		VideoMaxMB:   cfg.VideoCacheMaxMB,
		Fetch: func(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (*http.Response, error) {
			return client.fetchAsset(ctx, url, headers, timeout)
		},
	})
	a := &Adapter{cfg: cfg, store: store, client: client, cache: cache}
	a.refresher = NewRefresher(store, client)
	return a
}

// AsExecutor exposes the adapter behind the generic executor.Adapter
// contract for registration with the dispatcher's registry.
func (a *Adapter) AsExecutor() *executor.Adapter {
	return &executor.Adapter{
		Models: func() []string { return ModelIDs() },
		Handle: a.Handle,
	}
}

// ProxyPool exposes the adapter's egress proxy pool for the management
// surface's cache/stats endpoint.
func (a *Adapter) ProxyPool() *proxypool.Pool {
	return a.client.proxy
}

// StartRefresher launches the background quota refresher if
// auto_refresh_tokens is enabled. Cancel ctx to stop it cleanly.
func (a *Adapter) StartRefresher(ctx context.Context) {
	if !a.cfg.AutoRefreshTokens {
		return
	}
	go a.refresher.Run(ctx)
}

// Handle implements the provider adapter contract §4.4 for Grok: rank and
// select an SSO token, build the request payload, and open the completion
// stream (or the image-to-video pipeline for the image model).
func (a *Adapter) Handle(ctx context.Context, callerAuth string, req middle.Content) (*executor.Result, error) {
	model, ok := lookupModel(req.Model)
	if !ok {
		return nil, executor.ErrBadRequest(fmt.Sprintf("grok: unknown model %q", req.Model))
	}

	snap, err := a.store.Load()
	if err != nil {
		return nil, executor.ErrInternal(fmt.Sprintf("grok: load token store: %v", err))
	}
	selected, ok := Rank(snap, req.Model)
	if !ok {
		return nil, executor.ErrNoAccount(http.StatusServiceUnavailable, "grok: no account available")
	}
	cookie := cookieHeader(selected.SSO)

	message := flattenMessages(req.Messages)

	var resp *http.Response
	if model.ModelID == ImageModelID {
		resp, err = a.handleImageToVideo(ctx, cookie, message, req.Messages)
	} else {
		payload := buildTextPayload(a.cfg, model, message, nil, nil)
		resp, err = a.client.Complete(ctx, cookie, payload)
	}
	if err != nil {
		a.recordFailure(selected, err)
		return nil, executor.ErrUpstream(http.StatusBadGateway, fmt.Sprintf("grok: %v", err))
	}

	chunks := make(chan executor.StreamChunk, 16)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()
		if err := streamResponse(ctx, resp.Body, req, a.cfg, a.cache, cookie, chunks); err != nil {
			log.Warnf("grok: stream aborted: %v", err)
		}
		a.recordSuccess(selected)
	}()

	return &executor.Result{Chunks: chunks, Model: req.Model}, nil
}

func (a *Adapter) recordFailure(sel Selected, cause error) {
	tier := "normal"
	if sel.Tier == TierSuper {
		tier = "super"
	}
	if err := a.store.UpdateEntry(tier, sel.SSO, func(e *TokenEntry) {
		e.FailedCount++
		e.LastFailureTime = nowMillis()
		e.LastFailureReason = cause.Error()
		if e.FailedCount >= 3 {
			e.Status = statusExpired
		}
	}); err != nil {
		log.Errorf("grok: record failure for %s token: %v", tier, err)
	}
}

func (a *Adapter) recordSuccess(sel Selected) {
	tier := "normal"
	if sel.Tier == TierSuper {
		tier = "super"
	}
	if err := a.store.UpdateEntry(tier, sel.SSO, func(e *TokenEntry) {
		e.FailedCount = 0
	}); err != nil {
		log.Errorf("grok: record success for %s token: %v", tier, err)
	}
}

func (a *Adapter) handleImageToVideo(ctx context.Context, cookie, userText string, messages []middle.Message) (*http.Response, error) {
	refData := firstInlineImageURL(messages)
	if refData == "" {
		return nil, fmt.Errorf("grok-imagine requires an image attachment")
	}
	// refData is already base64 text (middle.InlineData.Data); UploadFile
	// re-encodes raw bytes itself, so decode here to avoid double-encoding.
	raw, err := base64.StdEncoding.DecodeString(refData)
	if err != nil {
		return nil, fmt.Errorf("decode reference image: %w", err)
	}
	fileID, fileURI, err := a.client.UploadFile(ctx, cookie, "upload.jpg", "image/jpeg", raw)
	if err != nil {
		return nil, fmt.Errorf("upload reference image: %w", err)
	}
	postID, err := a.client.CreatePost(ctx, cookie, fileID, fileURI)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	payload := buildImageToVideoPayload(postID, userText, fileID)
	return a.client.Complete(ctx, cookie, payload)
}

func firstInlineImageURL(messages []middle.Message) string {
	for _, m := range messages {
		for _, tc := range m.ToolCalls {
			if tc.Type == "inline_data" && tc.Inline != nil {
				return tc.Inline.Data
			}
		}
	}
	return ""
}

func flattenMessages(messages []middle.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
