package proxypool

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeScheme(t *testing.T) {
	cases := map[string]string{
		"socks5://host:1080":  "socks5h://host:1080",
		"sock5://host:1080":   "socks5h://host:1080",
		"sock5h://host:1080":  "socks5h://host:1080",
		"http://host:8080":    "http://host:8080",
		"socks5h://host:1080": "socks5h://host:1080",
	}
	for in, want := range cases {
		if got := NormalizeScheme(in); got != want {
			t.Errorf("NormalizeScheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPoolURLThatLooksLikeProxyBecomesStatic(t *testing.T) {
	p := New(Options{PoolURL: "socks5://bad-pool:1080"})
	if p.enabled {
		t.Fatalf("pool polling should be disabled when pool_url is itself a proxy URL")
	}
	if got := p.Current(); got != "socks5h://bad-pool:1080" {
		t.Fatalf("Current() = %q, want reinterpreted static proxy", got)
	}
}

func TestForceRefreshUsesFetchedProxy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("http://refreshed:8080"))
	}))
	defer srv.Close()

	p := New(Options{PoolURL: srv.URL, IntervalSec: 3600})
	first := p.Current()
	if first != "http://refreshed:8080" {
		t.Fatalf("Current() = %q, want http://refreshed:8080", first)
	}

	p.ForceRefresh()
	if got := p.Current(); got != "http://refreshed:8080" {
		t.Fatalf("Current() after ForceRefresh = %q", got)
	}
}

func TestInvalidFetchedProxyKeepsPrevious(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte("http://good:8080"))
			return
		}
		_, _ = w.Write([]byte("not-a-proxy"))
	}))
	defer srv.Close()

	p := New(Options{PoolURL: srv.URL, IntervalSec: 0})
	if got := p.Current(); got != "http://good:8080" {
		t.Fatalf("Current() = %q, want http://good:8080", got)
	}
	p.ForceRefresh()
	if got := p.Current(); got != "http://good:8080" {
		t.Fatalf("Current() after bad refresh = %q, want unchanged http://good:8080", got)
	}
}
