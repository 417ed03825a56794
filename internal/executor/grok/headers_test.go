package grok

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jellyfish-p/web-proxy-api/internal/config"
)

func TestStatsigIDUsesStaticValueWhenNotDynamic(t *testing.T) {
	cfg := config.Grok{DynamicStatsig: false, XStatsigID: "fixed-id"}
	if got := statsigID(cfg); got != "fixed-id" {
		t.Fatalf("statsigID() = %q, want fixed-id", got)
	}
}

func TestStatsigIDGeneratesFreshValueWhenDynamic(t *testing.T) {
	cfg := config.Grok{DynamicStatsig: true}
	a := statsigID(cfg)
	b := statsigID(cfg)
	if a == "" || b == "" {
		t.Fatal("statsigID() returned empty string")
	}
	// Not asserting a != b: the random suffixes can collide, but both values
	// must always be valid non-empty base64.
	for _, id := range []string{a, b} {
		raw, err := base64.StdEncoding.DecodeString(id)
		if err != nil {
			t.Fatalf("statsigID() = %q is not valid base64: %v", id, err)
		}
		if !strings.HasPrefix(string(raw), "e:TypeError: Cannot read properties of ") {
			t.Fatalf("statsigID() decoded = %q, want TypeError fingerprint", raw)
		}
	}
}

func TestCookieHeaderFormat(t *testing.T) {
	got := cookieHeader("abc123")
	want := "sso-rw=abc123;sso=abc123"
	if got != want {
		t.Fatalf("cookieHeader() = %q, want %q", got, want)
	}
}

func TestApplyBaselineHeadersSetsRequiredFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "https://grok.com/rest/app-chat/conversations/new", nil)
	cfg := config.Grok{XStatsigID: "x"}
	applyBaselineHeaders(req, cfg, cookieHeader("tok"), false)

	if req.Header.Get("Cookie") != "sso-rw=tok;sso=tok" {
		t.Fatalf("Cookie header = %q", req.Header.Get("Cookie"))
	}
	if req.Header.Get("x-xai-request-id") == "" {
		t.Fatal("x-xai-request-id not set")
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json for non-upload", req.Header.Get("Content-Type"))
	}
}

func TestApplyBaselineHeadersUploadContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "https://grok.com/rest/app-chat/upload-file", nil)
	applyBaselineHeaders(req, config.Grok{}, "sso=x", true)

	if req.Header.Get("Content-Type") != "text/plain;charset=UTF-8" {
		t.Fatalf("Content-Type = %q, want upload content type", req.Header.Get("Content-Type"))
	}
}
