// Package credrepo implements the pluggable credential repository described
// by the orchestration engine's design notes: a uniform interface over the
// per-file DeepSeek store and the single-file Grok token store, both backed
// by the shared tokencache.Cache.
package credrepo

import (
	"fmt"
	"time"

	"github.com/jellyfish-p/web-proxy-api/internal/tokencache"
)

// FileRepo is the per-file credential repository used by DeepSeek: each
// credential is its own accounts/<project>/<file>.json document.
type FileRepo struct {
	cache   *tokencache.Cache
	project string
}

// NewFileRepo builds a FileRepo for project, backed by cache.
func NewFileRepo(cache *tokencache.Cache, project string) *FileRepo {
	return &FileRepo{cache: cache, project: project}
}

// List returns every credential filename registered for the project.
func (r *FileRepo) List() ([]string, error) {
	return r.cache.GetTokenList(r.project)
}

// Get returns the parsed JSON document for filename, or nil if absent.
func (r *FileRepo) Get(filename string) (map[string]any, error) {
	return r.cache.GetToken(r.project, filename)
}

// All returns every credential document keyed by filename.
func (r *FileRepo) All() (map[string]map[string]any, error) {
	return r.cache.GetAllTokens(r.project)
}

// Save writes data to accounts/<project>/filename and invalidates the cache
// entry so the next Get rereads it.
func (r *FileRepo) Save(filename string, data map[string]any) error {
	if err := writeJSONFile(r.cache.ProjectPath(r.project, filename), data); err != nil {
		return fmt.Errorf("credrepo: save %s/%s: %w", r.project, filename, err)
	}
	r.cache.InvalidateToken(r.project, filename)
	r.cache.InvalidateProject(r.project)
	return nil
}

// Delete removes filename from disk and invalidates the cache.
func (r *FileRepo) Delete(filename string) error {
	if err := deleteFile(r.cache.ProjectPath(r.project, filename)); err != nil {
		return fmt.Errorf("credrepo: delete %s/%s: %w", r.project, filename, err)
	}
	r.cache.InvalidateToken(r.project, filename)
	r.cache.InvalidateProject(r.project)
	return nil
}

// SingleFileRepo is the Grok-shaped repository: one document on disk holding
// two inner maps (ssoNormal/ssoSuper), exposed to the management surface as
// if it were a directory with one synthetic filename "token.json".
type SingleFileRepo struct {
	cache    *tokencache.Cache
	project  string
	filename string
}

// NewSingleFileRepo builds a SingleFileRepo for project's one document.
func NewSingleFileRepo(cache *tokencache.Cache, project, filename string) *SingleFileRepo {
	return &SingleFileRepo{cache: cache, project: project, filename: filename}
}

// Get returns the full document (both inner maps).
func (r *SingleFileRepo) Get() (map[string]any, error) {
	data, err := r.cache.GetToken(r.project, r.filename)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return map[string]any{"ssoNormal": map[string]any{}, "ssoSuper": map[string]any{}}, nil
	}
	return data, nil
}

// Save persists the full document and invalidates the cache.
func (r *SingleFileRepo) Save(data map[string]any) error {
	if err := writeJSONFile(r.cache.ProjectPath(r.project, r.filename), data); err != nil {
		return fmt.Errorf("credrepo: save %s: %w", r.project, err)
	}
	r.cache.InvalidateToken(r.project, r.filename)
	return nil
}

// touchedAt is a small helper the Grok adapter uses to stamp createdTime
// fields in ms-since-epoch, matching the data model's documented field.
func touchedAt() int64 {
	return time.Now().UnixMilli()
}

// TouchedAt exposes touchedAt for callers outside the package.
func TouchedAt() int64 { return touchedAt() }
