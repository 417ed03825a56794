package credrepo

import (
	"testing"

	"github.com/jellyfish-p/web-proxy-api/internal/tokencache"
)

func TestFileRepoSaveGetDelete(t *testing.T) {
	cache := tokencache.New(t.TempDir())
	repo := NewFileRepo(cache, "deepseek")

	if err := repo.Save("acct1.json", map[string]any{"email": "a@b.com", "token": "tok"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Get("acct1.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got["email"] != "a@b.com" {
		t.Fatalf("Get() = %v, want email a@b.com", got)
	}

	names, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 1 || names[0] != "acct1.json" {
		t.Fatalf("List() = %v, want [acct1.json]", names)
	}

	if err := repo.Delete("acct1.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, err = repo.Get("acct1.json")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if got != nil {
		t.Fatalf("Get() after delete = %v, want nil", got)
	}
}

func TestSingleFileRepoDefaultsToEmptyDocument(t *testing.T) {
	cache := tokencache.New(t.TempDir())
	repo := NewSingleFileRepo(cache, "grok", "token.json")

	doc, err := repo.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, ok := doc["ssoNormal"]; !ok {
		t.Fatalf("Get() default doc = %v, want ssoNormal key present", doc)
	}
	if _, ok := doc["ssoSuper"]; !ok {
		t.Fatalf("Get() default doc = %v, want ssoSuper key present", doc)
	}
}

func TestSingleFileRepoSaveThenGetRoundTrips(t *testing.T) {
	cache := tokencache.New(t.TempDir())
	repo := NewSingleFileRepo(cache, "grok", "token.json")

	err := repo.Save(map[string]any{
		"ssoNormal": map[string]any{"sso1": map[string]any{"status": "active"}},
		"ssoSuper":  map[string]any{},
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	doc, err := repo.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	normal, ok := doc["ssoNormal"].(map[string]any)
	if !ok || normal["sso1"] == nil {
		t.Fatalf("Get() = %v, want sso1 entry preserved", doc)
	}
}
