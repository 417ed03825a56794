package deepseek

import (
	"testing"

	"github.com/jellyfish-p/web-proxy-api/internal/credpool"
	"github.com/jellyfish-p/web-proxy-api/internal/credrepo"
	"github.com/jellyfish-p/web-proxy-api/internal/tokencache"
)

func TestResolveTokenUsesCallerBearerDirectlyWhenNotConfiguredKey(t *testing.T) {
	a := &Adapter{isConfiguredKey: func(string) bool { return false }}

	token, state, err := a.resolveToken("caller-owned-token", "deepseek-chat")
	if err != nil {
		t.Fatalf("resolveToken() error = %v", err)
	}
	if token != "caller-owned-token" {
		t.Fatalf("token = %q, want the caller bearer used directly", token)
	}
	if state.CredentialID != "" {
		t.Fatalf("state.CredentialID = %q, want empty (no pool lease taken)", state.CredentialID)
	}
}

func TestResolveTokenLeasesPoolCredentialWhenCallerBearerIsConfiguredKey(t *testing.T) {
	cache := tokencache.New(t.TempDir())
	repo := credrepo.NewFileRepo(cache, "deepseek")
	if err := repo.Save("acct1.json", map[string]any{"token": "stored-upstream-token"}); err != nil {
		t.Fatalf("seed credential: %v", err)
	}

	pool := credpool.New()
	pool.Register([]string{"deepseek-chat"}, []string{"acct1.json"}, "deepseek")

	a := &Adapter{
		pool:            pool,
		repo:            repo,
		isConfiguredKey: func(string) bool { return true },
	}

	token, state, err := a.resolveToken("test-key", "deepseek-chat")
	if err != nil {
		t.Fatalf("resolveToken() error = %v", err)
	}
	if token != "stored-upstream-token" {
		t.Fatalf("token = %q, want stored-upstream-token leased from the pool", token)
	}
	if state.CredentialID != "acct1.json" {
		t.Fatalf("state.CredentialID = %q, want acct1.json", state.CredentialID)
	}
}

func TestMobilePatternMatchesChineseMobileNumbers(t *testing.T) {
	valid := []string{"13800138000", "15912345678", "19900001111"}
	for _, m := range valid {
		if !mobilePattern.MatchString(m) {
			t.Errorf("mobilePattern.MatchString(%q) = false, want true", m)
		}
	}

	invalid := []string{"12800138000", "1234", "not-a-number", "139001380001"}
	for _, m := range invalid {
		if mobilePattern.MatchString(m) {
			t.Errorf("mobilePattern.MatchString(%q) = true, want false", m)
		}
	}
}
