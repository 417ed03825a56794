package proxypool

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	tls "github.com/refraction-networking/utls"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"
)

// utlsRoundTripper implements http.RoundTripper using utls with a Firefox
// fingerprint, to bypass Cloudflare's TLS fingerprinting on DeepSeek's and
// Grok's web-session endpoints (both Cloudflare-fronted, same concern the
// teacher's Claude client addresses against Anthropic's domain).
type utlsRoundTripper struct {
	mu          sync.Mutex
	connections map[string]*http2.ClientConn
	pending     map[string]*sync.Cond
	dialer      proxy.Dialer
	// plain handles plain-HTTP requests (no TLS layer to fingerprint),
	// which lets tests exercise the retry/request-building logic above
	// this transport against an httptest.Server without needing TLS.
	plain http.RoundTripper
}

func newUTLSRoundTripper(dialer proxy.Dialer) *utlsRoundTripper {
	if dialer == nil {
		dialer = proxy.Direct
	}
	return &utlsRoundTripper{
		connections: make(map[string]*http2.ClientConn),
		pending:     make(map[string]*sync.Cond),
		dialer:      dialer,
		plain:       &http.Transport{},
	}
}

// getOrCreateConnection gets an existing HTTP/2 connection or creates a new
// one, using per-host locking so concurrent requests to the same host don't
// race to dial.
func (t *utlsRoundTripper) getOrCreateConnection(host, addr string) (*http2.ClientConn, error) {
	t.mu.Lock()

	if h2Conn, ok := t.connections[host]; ok && h2Conn.CanTakeNewRequest() {
		t.mu.Unlock()
		return h2Conn, nil
	}

	if cond, ok := t.pending[host]; ok {
		cond.Wait()
		if h2Conn, ok := t.connections[host]; ok && h2Conn.CanTakeNewRequest() {
			t.mu.Unlock()
			return h2Conn, nil
		}
	}

	cond := sync.NewCond(&t.mu)
	t.pending[host] = cond
	t.mu.Unlock()

	h2Conn, err := t.createConnection(host, addr)

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, host)
	cond.Broadcast()

	if err != nil {
		return nil, err
	}
	t.connections[host] = h2Conn
	return h2Conn, nil
}

// createConnection dials addr through t.dialer and completes a utls
// handshake using the Firefox ClientHello before negotiating HTTP/2.
func (t *utlsRoundTripper) createConnection(host, addr string) (*http2.ClientConn, error) {
	conn, err := t.dialer.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloFirefox_Auto)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, err
	}

	tr := &http2.Transport{}
	h2Conn, err := tr.NewClientConn(tlsConn)
	if err != nil {
		tlsConn.Close()
		return nil, err
	}
	return h2Conn, nil
}

// RoundTrip implements http.RoundTripper. Plain-HTTP requests have no TLS
// layer to fingerprint and are passed through unchanged.
func (t *utlsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.plain.RoundTrip(req)
	}

	host := req.URL.Host
	addr := host
	if !strings.Contains(addr, ":") {
		addr += ":443"
	}
	hostname := req.URL.Hostname()

	h2Conn, err := t.getOrCreateConnection(hostname, addr)
	if err != nil {
		return nil, err
	}

	resp, err := h2Conn.RoundTrip(req)
	if err != nil {
		t.mu.Lock()
		if cached, ok := t.connections[hostname]; ok && cached == h2Conn {
			delete(t.connections, hostname)
		}
		t.mu.Unlock()
		return nil, err
	}
	return resp, nil
}

// NewUTLSHTTPClient builds an *http.Client that spoofs a Firefox TLS
// fingerprint on every HTTPS request (dialing through proxyURL when non-empty)
// instead of Go's default TLS stack, which Cloudflare can fingerprint as a
// non-browser client.
func NewUTLSHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	dialer := proxy.Dialer(proxy.Direct)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			log.Errorf("proxypool: parse proxy url %q failed: %v (using direct dial)", proxyURL, err)
		} else if d, errDial := proxy.FromURL(u, proxy.Direct); errDial != nil {
			log.Errorf("proxypool: create dialer for %q failed: %v (using direct dial)", proxyURL, errDial)
		} else {
			dialer = d
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: newUTLSRoundTripper(dialer),
	}
}
