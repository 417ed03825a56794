package grok

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"net/http"

	"github.com/google/uuid"

	"github.com/jellyfish-p/web-proxy-api/internal/config"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
const lowercase = "abcdefghijklmnopqrstuvwxyz"

func randomString(alphabet string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

// statsigID computes the x-statsig-id header value. When cfg.DynamicStatsig
// is set, a fresh fingerprint is generated per call per §4.6; otherwise the
// configured static id is used.
func statsigID(cfg config.Grok) string {
	if !cfg.DynamicStatsig {
		return cfg.XStatsigID
	}
	var message string
	if rand.Float64() < 0.5 {
		message = fmt.Sprintf("e:TypeError: Cannot read properties of null (reading 'children['%s']')", randomString(alphanumeric, 5))
	} else {
		message = fmt.Sprintf("e:TypeError: Cannot read properties of undefined (reading '%s')", randomString(lowercase, 10))
	}
	return base64.StdEncoding.EncodeToString([]byte(message))
}

// applyBaselineHeaders sets the fixed header set sent on every Grok call,
// plus the per-call dynamic fingerprint headers.
func applyBaselineHeaders(req *http.Request, cfg config.Grok, cookie string, isUpload bool) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Sec-Ch-Ua", `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`)
	req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
	req.Header.Set("Sec-Ch-Ua-Platform", `"Windows"`)
	req.Header.Set("Origin", "https://grok.com")
	req.Header.Set("Referer", "https://grok.com/")
	req.Header.Set("Baggage", "sentry-environment=production")
	req.Header.Set("Cookie", cookie)
	req.Header.Set("x-statsig-id", statsigID(cfg))
	req.Header.Set("x-xai-request-id", uuid.New().String())
	if isUpload {
		req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	} else {
		req.Header.Set("Content-Type", "application/json")
	}
}

// cookieHeader builds the "sso-rw=TOKEN;sso=TOKEN" cookie value per §4.6.
func cookieHeader(sso string) string {
	return fmt.Sprintf("sso-rw=%s;sso=%s", sso, sso)
}
