package tokencache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeJSON(t *testing.T, path string, v map[string]any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err = os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestGetTokenReadsThroughAndCaches(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "deepseek")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	writeJSON(t, filepath.Join(dir, "a.json"), map[string]any{"token": "v1"})

	c := New(root)
	data, err := c.GetToken("deepseek", "a.json")
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if data["token"] != "v1" {
		t.Fatalf("token = %v, want v1", data["token"])
	}
}

func TestGetTokenMissingFileReturnsNil(t *testing.T) {
	root := t.TempDir()
	c := New(root)
	data, err := c.GetToken("deepseek", "missing.json")
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if data != nil {
		t.Fatalf("data = %v, want nil", data)
	}
}

func TestWatcherInvalidatesOnChange(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "deepseek")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "a.json")
	writeJSON(t, path, map[string]any{"token": "v1"})

	c := New(root)
	if _, err := c.GetTokenList("deepseek"); err != nil {
		t.Fatalf("GetTokenList: %v", err)
	}
	if _, err := c.GetToken("deepseek", "a.json"); err != nil {
		t.Fatalf("GetToken: %v", err)
	}

	writeJSON(t, path, map[string]any{"token": "v2"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := c.GetToken("deepseek", "a.json")
		if err != nil {
			t.Fatalf("GetToken: %v", err)
		}
		if data["token"] == "v2" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("watcher did not invalidate entry within timeout")
}
