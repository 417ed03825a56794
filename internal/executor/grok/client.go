package grok

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jellyfish-p/web-proxy-api/internal/config"
	"github.com/jellyfish-p/web-proxy-api/internal/proxypool"
)

// Client wraps the shared proxy pool and retry policy every Grok endpoint
// call (completion, rate-limit poll, upload, create-post, media fetch)
// goes through.
type Client struct {
	cfg   config.Grok
	proxy *proxypool.Pool
}

// NewClient constructs a Client from cfg.
func NewClient(cfg config.Grok) *Client {
	pool := proxypool.New(proxypool.Options{
		StaticProxy: cfg.ProxyURL,
		PoolURL:     cfg.ProxyPoolURL,
		IntervalSec: cfg.ProxyPoolInterval,
	})
	return &Client{cfg: cfg, proxy: pool}
}

const (
	outerRetries = 3
	innerRetries403 = 5
)

func (c *Client) httpClient() *http.Client {
	return proxypool.NewUTLSHTTPClient(c.proxy.Current(), 60*time.Second)
}

func isRetryStatus(status int, codes []int) bool {
	for _, c := range codes {
		if c == status {
			return true
		}
	}
	return false
}

// Do executes buildReq's result with the shared outer/inner retry policy:
// up to outerRetries on any status in cfg.RetryStatusCodes (default
// 401/429) with an (i+1)*100ms backoff, and up to innerRetries403 on HTTP
// 403 with a proxy force-refresh and 500ms pause each time.
func (c *Client) Do(ctx context.Context, buildReq func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	retryCodes := c.cfg.RetryStatusCodes
	if len(retryCodes) == 0 {
		retryCodes = []int{401, 429}
	}

	for outer := 0; outer < outerRetries; outer++ {
		resp, err := c.doWithForbiddenRetry(ctx, buildReq)
		if err != nil {
			return nil, err
		}
		if !isRetryStatus(resp.StatusCode, retryCodes) {
			return resp, nil
		}
		resp.Body.Close()
		log.Warnf("grok: retrying after status %d (attempt %d/%d)", resp.StatusCode, outer+1, outerRetries)
		time.Sleep(time.Duration(outer+1) * 100 * time.Millisecond)
	}
	return nil, fmt.Errorf("grok: exhausted %d outer retries", outerRetries)
}

func (c *Client) doWithForbiddenRetry(ctx context.Context, buildReq func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	for inner := 0; inner < innerRetries403; inner++ {
		req, err := buildReq(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient().Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusForbidden {
			return resp, nil
		}
		resp.Body.Close()
		c.proxy.ForceRefresh()
		time.Sleep(500 * time.Millisecond)
	}
	return nil, fmt.Errorf("grok: exhausted %d inner 403 retries", innerRetries403)
}

// readAll reads and closes resp.Body.
func readAll(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// fetchAsset performs a GET against assets.grok.com for the media cache,
// sharing this client's proxy/403-retry policy with a caller-specified
// timeout and header set.
// fetchAsset honors timeout via the request context: once it elapses the
// request is cancelled, including while the caller is still reading the
// response body.
func (c *Client) fetchAsset(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (*http.Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		time.AfterFunc(timeout, cancel)
	}
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		applyBaselineHeaders(req, c.cfg, headers["Cookie"], false)
		return req, nil
	})
}
