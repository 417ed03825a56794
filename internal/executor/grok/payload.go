package grok

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/jellyfish-p/web-proxy-api/internal/config"
)

// buildTextPayload constructs the fixed options set §4.6 documents for
// text/reasoning completion requests.
func buildTextPayload(cfg config.Grok, model ModelInfo, message string, fileAttachments, imageAttachments []string) map[string]any {
	return map[string]any{
		"temporary":                 cfg.Temporary,
		"modelName":                 model.GrokModel,
		"message":                   message,
		"fileAttachments":           fileAttachments,
		"imageAttachments":          imageAttachments,
		"disableSearch":             false,
		"enableImageGeneration":     true,
		"returnImageBytes":          false,
		"returnRawGrokInXaiRequest": false,
		"enableImageStreaming":      true,
		"imageGenerationCount":      2,
		"forceConcise":              false,
		"toolOverrides":             map[string]any{},
		"enableSideBySide":          true,
		"sendFinalMetadata":         true,
		"isReasoning":               model.ModelMode == "MODEL_MODE_REASONING",
		"webpageUrls":               []string{},
		"disableTextFollowUps":      true,
		"responseMetadata": map[string]any{
			"requestModelDetails": map[string]any{"modelId": model.GrokModel},
		},
		"disableMemory":   false,
		"forceSideBySide": false,
		"modelMode":       model.ModelMode,
		"isAsyncChat":     false,
	}
}

// buildImageToVideoPayload constructs the fixed skeleton §4.6 documents for
// image-to-video generation, after the reference image has been uploaded
// and posted.
func buildImageToVideoPayload(referenceURL, userText, fileID string) map[string]any {
	return map[string]any{
		"temporary":       true,
		"modelName":       "grok-3",
		"message":         fmt.Sprintf("%s  %s --mode=custom", referenceURL, userText),
		"fileAttachments": []string{fileID},
		"toolOverrides":   map[string]any{"videoGen": true},
	}
}

func (c *Client) postJSON(ctx context.Context, cookie, path string, body any) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		applyBaselineHeaders(req, c.cfg, cookie, false)
		return req, nil
	})
}

// Complete opens the completion NDJSON stream for a text/reasoning request.
func (c *Client) Complete(ctx context.Context, cookie string, payload map[string]any) (*http.Response, error) {
	resp, err := c.postJSON(ctx, cookie, "/rest/app-chat/conversations/new", payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, fmt.Errorf("conversations/new returned status %d", resp.StatusCode)
	}
	return resp, nil
}

// rateLimitResult carries the two quota fields observed from a rate-limit
// poll, per §4.6.
type rateLimitResult struct {
	RemainingQueries int64
	RemainingTokens  int64
}

// PollRateLimit implements POST /rest/rate-limits for modelID.
func (c *Client) PollRateLimit(ctx context.Context, cookie, rateLimitModelID string) (rateLimitResult, error) {
	resp, err := c.postJSON(ctx, cookie, "/rest/rate-limits", map[string]any{
		"requestKind": "DEFAULT",
		"modelName":   rateLimitModelID,
	})
	if err != nil {
		return rateLimitResult{}, err
	}
	raw, err := readAll(resp)
	if err != nil {
		return rateLimitResult{}, err
	}
	return rateLimitResult{
		RemainingQueries: gjson.GetBytes(raw, "remainingQueries").Int(),
		RemainingTokens:  gjson.GetBytes(raw, "remainingTokens").Int(),
	}, nil
}

// UploadFile implements POST /rest/app-chat/upload-file for image/video
// attachments, returning the uploaded file's id and URI.
func (c *Client) UploadFile(ctx context.Context, cookie, fileName, mimeType string, content []byte) (fileID, fileURI string, err error) {
	resp, errDo := c.postJSON(ctx, cookie, "/rest/app-chat/upload-file", map[string]any{
		"fileName":     fileName,
		"fileMimeType": mimeType,
		"content":      base64.StdEncoding.EncodeToString(content),
	})
	if errDo != nil {
		return "", "", errDo
	}
	raw, errRead := readAll(resp)
	if errRead != nil {
		return "", "", errRead
	}
	fileID = gjson.GetBytes(raw, "fileMetadataId").String()
	fileURI = gjson.GetBytes(raw, "fileUri").String()
	if fileID == "" {
		return "", "", fmt.Errorf("upload-file missing fileMetadataId: %s", raw)
	}
	return fileID, fileURI, nil
}

// CreatePost implements POST /rest/app-chat/create-post for image-to-video
// generation, returning the created post id.
func (c *Client) CreatePost(ctx context.Context, cookie, fileID, fileURI string) (string, error) {
	resp, err := c.postJSON(ctx, cookie, "/rest/app-chat/create-post", map[string]any{
		"fileId":  fileID,
		"fileUri": fileURI,
	})
	if err != nil {
		return "", err
	}
	raw, err := readAll(resp)
	if err != nil {
		return "", err
	}
	if !gjson.GetBytes(raw, "success").Bool() {
		return "", fmt.Errorf("create-post failed: %s", raw)
	}
	return gjson.GetBytes(raw, "postId").String(), nil
}
