// Package tokencache implements the read-through cache over
// accounts/<project>/*.json credential files (subdirectories are neither
// scanned nor watched) described by the
// orchestration engine: TTL'd entries, a TTL'd directory listing, and
// fsnotify-driven invalidation so mutations made outside the process (or by
// the management surface) are observed promptly.
package tokencache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const (
	entryTTL   = 5 * time.Minute
	scanTTL    = 30 * time.Second
)

type entry struct {
	data     map[string]any
	loadedAt time.Time
}

type projectState struct {
	mu       sync.Mutex
	entries  map[string]*entry // filename -> entry
	fileList []string
	lastScan time.Time
	watching bool
}

// Cache is the process-wide token-file cache. One Cache instance is shared
// by every credential repository backed by accounts/<project>/.
type Cache struct {
	rootDir string

	mu       sync.Mutex
	projects map[string]*projectState

	watcher      *fsnotify.Watcher
	dirToProject map[string]string
}

// New constructs a Cache rooted at rootDir (typically "accounts").
func New(rootDir string) *Cache {
	return &Cache{
		rootDir:  rootDir,
		projects: make(map[string]*projectState),
	}
}

func (c *Cache) projectDir(project string) string {
	return filepath.Join(c.rootDir, project)
}

// ProjectPath returns the on-disk path of filename within project, for
// callers (the credential repository) that need to write or delete a file
// the cache itself only reads.
func (c *Cache) ProjectPath(project, filename string) string {
	return filepath.Join(c.projectDir(project), filename)
}

func (c *Cache) state(project string) *projectState {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.projects[project]
	if !ok {
		p = &projectState{entries: make(map[string]*entry)}
		c.projects[project] = p
	}
	return p
}

// GetToken returns a fresh copy of the credential JSON for (project,
// filename), reading through to disk when the cached entry is stale or
// missing. A missing file yields (nil, nil) and evicts any stale entry.
func (c *Cache) GetToken(project, filename string) (map[string]any, error) {
	p := c.state(project)

	p.mu.Lock()
	if e, ok := p.entries[filename]; ok && time.Since(e.loadedAt) < entryTTL {
		data := cloneMap(e.data)
		p.mu.Unlock()
		return data, nil
	}
	p.mu.Unlock()

	path := filepath.Join(c.projectDir(project), filename)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			p.mu.Lock()
			delete(p.entries, filename)
			p.mu.Unlock()
			return nil, nil
		}
		return nil, err
	}

	var data map[string]any
	if err = json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.entries[filename] = &entry{data: data, loadedAt: time.Now()}
	p.mu.Unlock()

	return cloneMap(data), nil
}

// GetTokenList returns the cached directory snapshot for project if younger
// than scanTTL; otherwise it rescans accounts/<project>, installs a watcher
// on first scan, and returns the refreshed list.
func (c *Cache) GetTokenList(project string) ([]string, error) {
	p := c.state(project)

	p.mu.Lock()
	if time.Since(p.lastScan) < scanTTL && p.fileList != nil {
		list := append([]string(nil), p.fileList...)
		p.mu.Unlock()
		return list, nil
	}
	needsWatch := !p.watching
	p.mu.Unlock()

	dir := c.projectDir(project)
	names, err := scanJSONFiles(dir)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.fileList = names
	p.lastScan = time.Now()
	p.watching = true
	p.mu.Unlock()

	if needsWatch {
		c.ensureWatch(project, dir)
	}

	return append([]string(nil), names...), nil
}

// GetAllTokens concurrently reads every file returned by GetTokenList.
func (c *Cache) GetAllTokens(project string) (map[string]map[string]any, error) {
	names, err := c.GetTokenList(project)
	if err != nil {
		return nil, err
	}

	type result struct {
		name string
		data map[string]any
		err  error
	}
	results := make(chan result, len(names))
	for _, name := range names {
		go func(name string) {
			data, errGet := c.GetToken(project, name)
			results <- result{name: name, data: data, err: errGet}
		}(name)
	}

	out := make(map[string]map[string]any, len(names))
	var firstErr error
	for range names {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		if r.data != nil {
			out[r.name] = r.data
		}
	}
	return out, firstErr
}

// InvalidateToken evicts a single cached entry.
func (c *Cache) InvalidateToken(project, filename string) {
	p := c.state(project)
	p.mu.Lock()
	delete(p.entries, filename)
	p.mu.Unlock()
}

// InvalidateProject evicts every cached entry for project and forces the
// next GetTokenList call to rescan.
func (c *Cache) InvalidateProject(project string) {
	p := c.state(project)
	p.mu.Lock()
	p.entries = make(map[string]*entry)
	p.lastScan = time.Time{}
	p.mu.Unlock()
}

// PreloadProject eagerly populates every entry for project.
func (c *Cache) PreloadProject(project string) error {
	_, err := c.GetAllTokens(project)
	return err
}

func scanJSONFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(de.Name()), ".json") {
			names = append(names, de.Name())
		}
	}
	return names, nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ensureWatch installs an fsnotify watch on dir the first time a project is
// scanned, lazily starting the shared watcher goroutine. Watcher errors are
// logged; the cache degrades to TTL-only invalidation, per the orchestration
// engine's watcher contract.
func (c *Cache) ensureWatch(project, dir string) {
	c.mu.Lock()
	if c.watcher == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			c.mu.Unlock()
			log.Errorf("tokencache: create watcher failed: %v", err)
			return
		}
		c.watcher = w
		go c.watchLoop()
	}
	watcher := c.watcher
	c.mu.Unlock()

	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Errorf("tokencache: mkdir %s failed: %v", dir, err)
		return
	}
	if err := watcher.Add(dir); err != nil {
		log.Errorf("tokencache: watch %s failed: %v", dir, err)
		return
	}
	c.mu.Lock()
	if c.dirToProject == nil {
		c.dirToProject = make(map[string]string)
	}
	c.dirToProject[dir] = project
	c.mu.Unlock()
}

func (c *Cache) watchLoop() {
	for {
		c.mu.Lock()
		w := c.watcher
		c.mu.Unlock()
		if w == nil {
			return
		}
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			c.handleEvent(ev)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Errorf("tokencache: watcher error: %v", err)
		}
	}
}

func (c *Cache) handleEvent(ev fsnotify.Event) {
	if !strings.HasSuffix(strings.ToLower(ev.Name), ".json") {
		return
	}
	dir := filepath.Dir(ev.Name)
	filename := filepath.Base(ev.Name)

	c.mu.Lock()
	project, ok := c.dirToProject[dir]
	c.mu.Unlock()
	if !ok {
		return
	}

	p := c.state(project)
	p.mu.Lock()
	delete(p.entries, filename)
	p.lastScan = time.Time{}
	p.mu.Unlock()
}

// Stats reports the number of cached entries per project, used by the
// management surface's /cache/stats endpoint.
func (c *Cache) Stats() map[string]int {
	c.mu.Lock()
	projects := make([]string, 0, len(c.projects))
	for name := range c.projects {
		projects = append(projects, name)
	}
	c.mu.Unlock()

	out := make(map[string]int, len(projects))
	for _, name := range projects {
		p := c.state(name)
		p.mu.Lock()
		out[name] = len(p.entries)
		p.mu.Unlock()
	}
	return out
}
