package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

func (a *Adapter) authedJSONRequest(ctx context.Context, token, path string, body any) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return a.client.Do(req)
}

// createSession implements §4.5 step 3: POST /api/v0/chat_session/create,
// retried up to 3 times on a non-zero response code.
func (a *Adapter) createSession(ctx context.Context, token string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := a.authedJSONRequest(ctx, token, "/api/v0/chat_session/create", map[string]any{"agent": "chat"})
		if err != nil {
			lastErr = err
			continue
		}
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		resp.Body.Close()

		if gjson.GetBytes(buf.Bytes(), "code").Int() != 0 {
			lastErr = fmt.Errorf("chat_session/create returned non-zero code: %s", buf.String())
			continue
		}
		sessionID := gjson.GetBytes(buf.Bytes(), "data.biz_data.id").String()
		if sessionID == "" {
			lastErr = fmt.Errorf("chat_session/create missing data.biz_data.id: %s", buf.String())
			continue
		}
		return sessionID, nil
	}
	return "", lastErr
}

// powChallenge is the server-issued PoW challenge, per §4.5 step 4.
type powChallenge struct {
	Algorithm  string `json:"algorithm"`
	Challenge  string `json:"challenge"`
	Salt       string `json:"salt"`
	Difficulty int64  `json:"difficulty"`
	ExpireAt   int64  `json:"expire_at"`
	Signature  string `json:"signature"`
	TargetPath string `json:"target_path"`
}

// fallbackDifficulty and fallbackExpireAt mirror the upstream service's own
// fallback values, reproduced for fidelity; the stale expire_at is a known
// upstream quirk, not a bug in this adapter (see open questions).
const (
	fallbackDifficulty = 144000
	fallbackExpireAt   = 1680000000
)

func (a *Adapter) createPowChallenge(ctx context.Context, token string) (*powChallenge, error) {
	resp, err := a.authedJSONRequest(ctx, token, "/api/v0/chat/create_pow_challenge", map[string]any{
		"target_path": "/api/v0/chat/completion",
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	data := gjson.GetBytes(buf.Bytes(), "data.biz_data.challenge")
	if !data.Exists() {
		return nil, fmt.Errorf("create_pow_challenge missing data.biz_data.challenge: %s", buf.String())
	}

	c := &powChallenge{
		Algorithm:  data.Get("algorithm").String(),
		Challenge:  data.Get("challenge").String(),
		Salt:       data.Get("salt").String(),
		Difficulty: data.Get("difficulty").Int(),
		ExpireAt:   data.Get("expire_at").Int(),
		Signature:  data.Get("signature").String(),
		TargetPath: data.Get("target_path").String(),
	}
	if c.Difficulty == 0 {
		c.Difficulty = fallbackDifficulty
	}
	if c.ExpireAt == 0 {
		c.ExpireAt = fallbackExpireAt
	}
	if c.Algorithm != "DeepSeekHashV1" {
		return nil, fmt.Errorf("unsupported pow algorithm %q", c.Algorithm)
	}
	return c, nil
}

// openCompletion implements §4.5 step 5: POST /api/v0/chat/completion with
// the model-dependent thinking/search flags, returning the open SSE body.
func (a *Adapter) openCompletion(ctx context.Context, token, sessionID, prompt string, thinking, search bool, powHeader string) (*http.Response, error) {
	body := map[string]any{
		"chat_session_id":   sessionID,
		"parent_message_id": nil,
		"prompt":            prompt,
		"ref_file_ids":      []string{},
		"thinking_enabled":  thinking,
		"search_enabled":    search,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/api/v0/chat/completion", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-ds-pow-response", powHeader)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("completion endpoint returned status %d", resp.StatusCode)
	}
	return resp, nil
}
