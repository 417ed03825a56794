package deepseek

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/jellyfish-p/web-proxy-api/internal/executor"
)

var mobilePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// resolveToken implements §4.5 step 1: if callerAuth matches a configured
// API key the adapter leases a pool credential (logging in if necessary);
// otherwise callerAuth is used directly as the DeepSeek bearer token.
func (a *Adapter) resolveToken(callerAuth, modelID string) (string, executor.State, error) {
	if !a.isConfiguredKey(callerAuth) {
		return callerAuth, executor.State{ModelID: modelID}, nil
	}

	credentialID := a.pool.Acquire(modelID)
	if credentialID == "" {
		return "", executor.State{}, executor.ErrNoAccount(http.StatusTooManyRequests, "deepseek: no account available")
	}
	state := executor.State{CredentialID: credentialID, ModelID: modelID}

	doc, err := a.repo.Get(credentialID)
	if err != nil || doc == nil {
		a.pool.Release(credentialID)
		return "", executor.State{}, executor.ErrInternal(fmt.Sprintf("deepseek: read credential %s: %v", credentialID, err))
	}

	if token, ok := doc["token"].(string); ok && token != "" {
		return token, state, nil
	}

	email, _ := doc["email"].(string)
	mobile, _ := doc["mobile"].(string)
	password, _ := doc["password"].(string)
	if mobile != "" && !mobilePattern.MatchString(mobile) {
		a.pool.Release(credentialID)
		return "", executor.State{}, executor.ErrBadRequest("deepseek: mobile identifier does not match ^1[3-9]\\d{9}$")
	}

	token, err := a.login(email, mobile, password)
	if err != nil {
		a.pool.Release(credentialID)
		return "", executor.State{}, executor.ErrUpstream(http.StatusBadGateway, fmt.Sprintf("deepseek: login: %v", err))
	}

	doc["token"] = token
	_ = a.repo.Save(credentialID, doc)

	return token, state, nil
}

// login performs POST /api/v0/users/login and returns data.biz_data.user.token.
func (a *Adapter) login(email, mobile, password string) (string, error) {
	device := "web_proxy_api"
	body := map[string]any{
		"password":  password,
		"device_id": device,
		"os":        "android",
	}
	if mobile != "" {
		body["mobile"] = mobile
	} else {
		body["email"] = email
	}
	raw, _ := json.Marshal(body)

	req, err := http.NewRequest(http.MethodPost, a.cfg.BaseURL+"/api/v0/users/login", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", err
	}

	token := gjson.GetBytes(buf.Bytes(), "data.biz_data.user.token").String()
	if token == "" {
		return "", fmt.Errorf("login response missing data.biz_data.user.token: %s", buf.String())
	}
	return token, nil
}
