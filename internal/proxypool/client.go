package proxypool

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// NewHTTPClient builds an *http.Client routed through proxyURL. An empty
// proxyURL returns a plain client. Unsupported schemes fall back to a direct
// client with a warning logged.
func NewHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if proxyURL == "" {
		return client
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		log.Errorf("proxypool: parse proxy url %q failed: %v", proxyURL, err)
		return client
	}

	switch u.Scheme {
	case "http", "https":
		client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	case "socks5", "socks5h", "socks4", "socks":
		var auth *proxy.Auth
		if u.User != nil {
			username := u.User.Username()
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: username, Password: password}
		}
		dialer, errDial := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if errDial != nil {
			log.Errorf("proxypool: create SOCKS dialer for %q failed: %v", proxyURL, errDial)
			return client
		}
		client.Transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	default:
		log.Warnf("proxypool: unsupported proxy scheme %q, using direct connection", u.Scheme)
	}
	return client
}
