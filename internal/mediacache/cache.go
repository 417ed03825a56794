// Package mediacache implements the image/video asset cache described by
// the orchestration engine's media cache component: download-once,
// size-capped, oldest-mtime eviction.
package mediacache

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Kind identifies which cache directory an asset belongs to.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

var timeouts = map[Kind]time.Duration{
	KindImage: 30 * time.Second,
	KindVideo: 60 * time.Second,
}

// Fetcher performs the actual upstream GET, abstracting the Grok client's
// proxy/retry/header policy so this package stays provider-agnostic.
type Fetcher func(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (*http.Response, error)

// Cache manages data/temp/{image,video}/<flattened-path> files.
type Cache struct {
	baseDir   string
	maxBytes  map[Kind]int64
	fetch     Fetcher
	assetBase string

	evictMu sync.Mutex
}

// Options configures a Cache.
type Options struct {
	BaseDir       string // e.g. "data/temp"
	AssetBaseURL  string // e.g. "https://assets.grok.com"
	ImageMaxMB    int
	VideoMaxMB    int
	Fetch         Fetcher
}

// New constructs a Cache from opts.
func New(opts Options) *Cache {
	return &Cache{
		baseDir:   opts.BaseDir,
		assetBase: opts.AssetBaseURL,
		fetch:     opts.Fetch,
		maxBytes: map[Kind]int64{
			KindImage: int64(opts.ImageMaxMB) * 1024 * 1024,
			KindVideo: int64(opts.VideoMaxMB) * 1024 * 1024,
		},
	}
}

// flatten turns a remote asset path into a single filesystem-safe filename.
func flatten(path string) string {
	return strings.ReplaceAll(strings.TrimPrefix(path, "/"), "/", "-")
}

func (c *Cache) dir(kind Kind) string {
	return filepath.Join(c.baseDir, string(kind))
}

func (c *Cache) localPath(kind Kind, assetPath string) string {
	return filepath.Join(c.dir(kind), flatten(assetPath))
}

// Get returns the local path of assetPath within kind's cache, downloading
// it from assetBase/assetPath with cookieHeader if not already cached.
func (c *Cache) Get(ctx context.Context, kind Kind, assetPath, cookieHeader string) (string, error) {
	local := c.localPath(kind, assetPath)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	if err := os.MkdirAll(c.dir(kind), 0o755); err != nil {
		return "", fmt.Errorf("mediacache: mkdir: %w", err)
	}

	resp, err := c.fetch(ctx, c.assetBase+"/"+strings.TrimPrefix(assetPath, "/"), map[string]string{"Cookie": cookieHeader}, timeouts[kind])
	if err != nil {
		return "", fmt.Errorf("mediacache: fetch %s: %w", assetPath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("mediacache: fetch %s: status %d", assetPath, resp.StatusCode)
	}

	tmp := local + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	f.Close()

	select {
	case <-ctx.Done():
		os.Remove(tmp)
		return "", ctx.Err()
	default:
	}

	if err := os.Rename(tmp, local); err != nil {
		return "", err
	}

	go c.evict(kind)
	return local, nil
}

// GetAsBase64 downloads assetPath (reusing Get), reads it, deletes the file,
// and returns a data: URL.
func (c *Cache) GetAsBase64(ctx context.Context, kind Kind, assetPath, cookieHeader, mimeType string) (string, error) {
	local, err := c.Get(ctx, kind, assetPath, cookieHeader)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return "", err
	}
	_ = os.Remove(local)
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)), nil
}

// LocalURLPath returns the /images/{kind}/<flattened> path a cached asset is
// served under.
func LocalURLPath(kind Kind, assetPath string) string {
	return fmt.Sprintf("/images/%s/%s", kind, flatten(assetPath))
}

// evict deletes oldest-mtime files under kind's directory until its total
// size is back under the configured cap. At most one eviction run per kind
// proceeds at a time.
func (c *Cache) evict(kind Kind) {
	c.evictMu.Lock()
	defer c.evictMu.Unlock()

	limit := c.maxBytes[kind]
	if limit <= 0 {
		return
	}
	dir := c.dir(kind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	type fileInfo struct {
		path  string
		size  int64
		mtime time.Time
	}
	files := make([]fileInfo, 0, len(entries))
	var total int64
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{path: filepath.Join(dir, de.Name()), size: info.Size(), mtime: info.ModTime()})
		total += info.Size()
	}
	if total <= limit {
		return
	}

	sort.Slice(files, func(i, j int) bool { return files[i].mtime.Before(files[j].mtime) })
	for _, f := range files {
		if total <= limit {
			break
		}
		if err := os.Remove(f.path); err != nil {
			continue
		}
		total -= f.size
	}
}

// ServePath resolves a caller-supplied flattened path under kind's
// directory, stripping ".." path traversal segments per §6's media
// endpoint contract.
func ServePath(baseDir string, kind Kind, flattenedName string) string {
	clean := strings.ReplaceAll(flattenedName, "..", "")
	clean = filepath.Base(clean)
	return filepath.Join(baseDir, string(kind), clean)
}
