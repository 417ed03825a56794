package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jellyfish-p/web-proxy-api/internal/config"
	"github.com/jellyfish-p/web-proxy-api/internal/proxypool"
	"github.com/jellyfish-p/web-proxy-api/internal/tokencache"
)

func newTestManagement(t *testing.T) (*gin.Engine, *ManagementHandlers) {
	t.Helper()
	cfg := &config.Config{Admin: config.Admin{Username: "admin", Password: "secret"}}
	cache := tokencache.New(t.TempDir())
	mgmt := NewManagementHandlers(cfg, cache, nil)

	r := gin.New()
	r.POST("/api/v0/management/login", mgmt.Login)
	protected := r.Group("/api/v0/management")
	protected.Use(mgmt.RequireSession)
	protected.GET("/check", mgmt.Check)
	return r, mgmt
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	r, _ := newTestManagement(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v0/management/login", strings.NewReader(`{"username":"admin","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestCheckRequiresSessionCookie(t *testing.T) {
	r, _ := newTestManagement(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v0/management/check", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without a session cookie", w.Code)
	}
}

func TestLoginThenCheckSucceedsWithSessionCookie(t *testing.T) {
	r, _ := newTestManagement(t)

	loginReq := httptest.NewRequest(http.MethodPost, "/api/v0/management/login", strings.NewReader(`{"username":"admin","password":"secret"}`))
	loginReq.Header.Set("Content-Type", "application/json")
	loginW := httptest.NewRecorder()
	r.ServeHTTP(loginW, loginReq)
	if loginW.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", loginW.Code)
	}

	cookies := loginW.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login response set no cookies")
	}

	checkReq := httptest.NewRequest(http.MethodGet, "/api/v0/management/check", nil)
	for _, ck := range cookies {
		checkReq.AddCookie(ck)
	}
	checkW := httptest.NewRecorder()
	r.ServeHTTP(checkW, checkReq)
	if checkW.Code != http.StatusOK {
		t.Fatalf("check status = %d, want 200 with valid session cookie", checkW.Code)
	}
}

func TestCacheStatsReportsCurrentProxyWhenPoolWired(t *testing.T) {
	cfg := &config.Config{Admin: config.Admin{Username: "admin", Password: "secret"}}
	cache := tokencache.New(t.TempDir())
	proxy := proxypool.New(proxypool.Options{StaticProxy: "socks5://127.0.0.1:1080"})
	mgmt := NewManagementHandlers(cfg, cache, proxy)

	r := gin.New()
	r.GET("/api/v0/management/cache/stats", mgmt.CacheStats)

	req := httptest.NewRequest(http.MethodGet, "/api/v0/management/cache/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["current_proxy"] != "socks5h://127.0.0.1:1080" {
		t.Fatalf("current_proxy = %v, want socks5h://127.0.0.1:1080", resp["current_proxy"])
	}
	if _, ok := resp["last_fetch_at"]; ok {
		t.Fatalf("last_fetch_at = %v, want absent for a static-proxy pool that never polled", resp["last_fetch_at"])
	}
}
