// Package proxypool implements the egress proxy layer: static proxy
// selection, a polled proxy-pool URL, scheme normalization, and a
// forceRefresh hook triggered by upstream 403 responses.
package proxypool

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// acceptedSchemes lists the proxy URL schemes the pool will accept.
var acceptedSchemes = map[string]bool{
	"socks5":  true,
	"socks5h": true,
	"socks4":  true,
	"socks":   true,
	"http":    true,
	"https":   true,
}

// NormalizeScheme rewrites the legacy/typo'd scheme spellings the upstream
// accepts into their canonical form. socks5:// is rewritten to socks5h://
// (remote DNS resolution) per the egress layer's contract.
func NormalizeScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "sock5h://"):
		return "socks5h://" + raw[len("sock5h://"):]
	case strings.HasPrefix(lower, "sock5://"):
		return "socks5h://" + raw[len("sock5://"):]
	case strings.HasPrefix(lower, "socks5://"):
		return "socks5h://" + raw[len("socks5://"):]
	default:
		return raw
	}
}

// IsProxyURL reports whether raw parses as a URL with one of the accepted
// proxy schemes.
func IsProxyURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(NormalizeScheme(raw))
	if err != nil || u.Scheme == "" {
		return false
	}
	return acceptedSchemes[strings.ToLower(u.Scheme)]
}

// Pool tracks the egress proxy state for one provider: an optional static
// proxy, an optional pool URL polled on an interval, and the last fetched
// value.
type Pool struct {
	mu sync.Mutex

	staticProxy string
	poolURL     string
	interval    time.Duration
	enabled     bool

	currentProxy string
	lastFetchAt  time.Time

	httpClient *http.Client
}

// Options configures a new Pool.
type Options struct {
	StaticProxy string
	PoolURL     string
	IntervalSec int
	HTTPClient  *http.Client
}

// New constructs a Pool from Options. If PoolURL itself looks like a proxy
// URL, it is reinterpreted as StaticProxy and pool polling is disabled, with
// a warning logged, per the egress layer's contract.
func New(opts Options) *Pool {
	p := &Pool{
		staticProxy: NormalizeScheme(opts.StaticProxy),
		poolURL:     strings.TrimSpace(opts.PoolURL),
		interval:    time.Duration(opts.IntervalSec) * time.Second,
		httpClient:  opts.HTTPClient,
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if IsProxyURL(p.poolURL) {
		log.Warnf("proxypool: pool_url %q looks like a proxy URL; treating it as a static proxy and disabling pool polling", p.poolURL)
		p.staticProxy = NormalizeScheme(p.poolURL)
		p.poolURL = ""
	}
	p.enabled = p.poolURL != ""
	return p
}

// Current returns the proxy URL that should be used for the next outbound
// request, refreshing from the pool URL first if due.
func (p *Pool) Current() string {
	p.refreshIfDue(false)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentProxy != "" {
		return p.currentProxy
	}
	return p.staticProxy
}

// LastFetchAt returns the time of the last pool-URL fetch attempt (success
// or failure), or the zero Time if the pool has never polled (static-proxy
// or pool-disabled configurations).
func (p *Pool) LastFetchAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFetchAt
}

// ForceRefresh triggers an immediate pool refresh, ignoring the interval.
// Invoked by adapters after observing an HTTP 403 from a provider.
func (p *Pool) ForceRefresh() {
	p.refreshIfDue(true)
}

func (p *Pool) refreshIfDue(force bool) {
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return
	}
	due := force || p.lastFetchAt.IsZero() || time.Since(p.lastFetchAt) >= p.interval
	if !due {
		p.mu.Unlock()
		return
	}
	poolURL := p.poolURL
	client := p.httpClient
	p.mu.Unlock()

	fetched, err := fetchProxyString(client, poolURL)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastFetchAt = time.Now()
	if err != nil {
		log.Warnf("proxypool: fetch %s failed: %v (keeping previous proxy)", poolURL, err)
		return
	}
	fetched = NormalizeScheme(fetched)
	if !IsProxyURL(fetched) {
		log.Warnf("proxypool: fetched value %q is not a valid proxy URL, keeping previous", fetched)
		return
	}
	p.currentProxy = fetched
}

func fetchProxyString(client *http.Client, poolURL string) (string, error) {
	resp, err := client.Get(poolURL)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
