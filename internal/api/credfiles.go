package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jellyfish-p/web-proxy-api/internal/tokencache"
)

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writeCredentialFile writes data to accounts/<project>/<filename> and
// invalidates the cache entry, per §6's tokens/add contract.
func writeCredentialFile(cache *tokencache.Cache, project, filename string, data map[string]any) error {
	path := cache.ProjectPath(project, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return err
	}
	cache.InvalidateToken(project, filename)
	cache.InvalidateProject(project)
	return nil
}

// deleteCredentialFile unlinks accounts/<project>/<filename> and
// invalidates the cache, per §6's tokens/delete contract.
func deleteCredentialFile(cache *tokencache.Cache, project, filename string) error {
	path := cache.ProjectPath(project, filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	cache.InvalidateToken(project, filename)
	cache.InvalidateProject(project)
	return nil
}

// deleteGrokEntry removes a single inner-map entry (ssoNormal or ssoSuper,
// keyed by tierType) from accounts/grok/token.json, per §6's Grok-specific
// tokens/delete branch.
func deleteGrokEntry(cache *tokencache.Cache, tierType, sso string) error {
	doc, err := cache.GetToken("grok", "token.json")
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	key := "ssoNormal"
	if tierType == "super" {
		key = "ssoSuper"
	}
	if tier, ok := doc[key].(map[string]any); ok {
		delete(tier, sso)
	}
	path := cache.ProjectPath("grok", "token.json")
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return err
	}
	cache.InvalidateToken("grok", "token.json")
	return nil
}
