package mediacache

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fetcherWithBody(body string) Fetcher {
	return func(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString(body)),
		}, nil
	}
}

func TestGetDownloadsAndCaches(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	fetch := func(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewBufferString("bytes"))}, nil
	}
	c := New(Options{BaseDir: dir, AssetBaseURL: "https://assets.example", ImageMaxMB: 10, Fetch: fetch})

	path1, err := c.Get(context.Background(), KindImage, "/a/b.png", "sso=1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	data, _ := os.ReadFile(path1)
	if string(data) != "bytes" {
		t.Fatalf("cached content = %q, want bytes", data)
	}

	path2, err := c.Get(context.Background(), KindImage, "/a/b.png", "sso=1")
	if err != nil {
		t.Fatalf("Get() second call error = %v", err)
	}
	if path1 != path2 {
		t.Fatalf("Get() paths differ: %q vs %q", path1, path2)
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1 (second Get should hit cache)", calls)
	}
}

func TestGetReturnsErrorOnNonSuccessStatus(t *testing.T) {
	dir := t.TempDir()
	fetch := func(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (*http.Response, error) {
		return &http.Response{StatusCode: 404, Body: io.NopCloser(bytes.NewBufferString(""))}, nil
	}
	c := New(Options{BaseDir: dir, AssetBaseURL: "https://assets.example", ImageMaxMB: 10, Fetch: fetch})

	if _, err := c.Get(context.Background(), KindImage, "/missing.png", ""); err == nil {
		t.Fatal("Get() error = nil, want error on 404")
	}
}

func TestGetAsBase64DeletesLocalFileAfterRead(t *testing.T) {
	dir := t.TempDir()
	c := New(Options{BaseDir: dir, AssetBaseURL: "https://assets.example", ImageMaxMB: 10, Fetch: fetcherWithBody("hi")})

	dataURL, err := c.GetAsBase64(context.Background(), KindImage, "/x.png", "", "image/png")
	if err != nil {
		t.Fatalf("GetAsBase64() error = %v", err)
	}
	if dataURL == "" {
		t.Fatal("GetAsBase64() returned empty string")
	}
	local := c.localPath(KindImage, "/x.png")
	if _, err := os.Stat(local); !os.IsNotExist(err) {
		t.Fatalf("expected local file to be deleted after GetAsBase64, stat err = %v", err)
	}
}

func TestFlattenReplacesSlashes(t *testing.T) {
	if got := flatten("/a/b/c.png"); got != "a-b-c.png" {
		t.Fatalf("flatten() = %q, want a-b-c.png", got)
	}
}

func TestEvictRemovesOldestFilesUntilUnderCap(t *testing.T) {
	dir := t.TempDir()
	c := New(Options{BaseDir: dir, ImageMaxMB: 0})
	c.maxBytes[KindImage] = 10 // bytes, small cap to force eviction

	imgDir := c.dir(KindImage)
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	write := func(name string, size int, age time.Duration) {
		p := filepath.Join(imgDir, name)
		if err := os.WriteFile(p, bytes.Repeat([]byte("x"), size), 0o644); err != nil {
			t.Fatal(err)
		}
		old := time.Now().Add(-age)
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatal(err)
		}
	}
	write("old.bin", 6, 2*time.Hour)
	write("new.bin", 6, time.Minute)

	c.evict(KindImage)

	if _, err := os.Stat(filepath.Join(imgDir, "old.bin")); !os.IsNotExist(err) {
		t.Fatal("expected oldest file to be evicted")
	}
	if _, err := os.Stat(filepath.Join(imgDir, "new.bin")); err != nil {
		t.Fatal("expected newest file to survive eviction")
	}
}

func TestServePathStripsTraversal(t *testing.T) {
	got := ServePath("/data/temp", KindImage, "../../etc/passwd")
	want := filepath.Join("/data/temp", "image", "passwd")
	if got != want {
		t.Fatalf("ServePath() = %q, want %q", got, want)
	}
}

func TestLocalURLPath(t *testing.T) {
	got := LocalURLPath(KindVideo, "/a/b.mp4")
	if got != "/images/video/a-b.mp4" {
		t.Fatalf("LocalURLPath() = %q, want /images/video/a-b.mp4", got)
	}
}
