// Package config loads and represents config.yaml: admin credentials, caller
// API keys, per-project enablement, and the Grok-specific tuning block. It is
// intentionally a thin, fail-fast loader — a malformed or missing file is a
// boot-time fatal error for the caller, never a runtime one.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EncryptedPrefix marks an admin password already hashed on a previous boot.
// The scheme is unsalted SHA-256 and is retained only for compatibility with
// existing config.yaml files; do not use it for anything new.
const EncryptedPrefix = "$encrypt$"

// Admin holds the management-surface login credentials.
type Admin struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Project gates whether a provider's adapter is registered at startup.
type Project struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Grok holds every Grok-adapter tuning knob described by the orchestration
// engine: refresh cadence, proxy configuration, statsig behavior, and media
// cache bounds.
type Grok struct {
	AutoRefreshTokens  bool     `yaml:"auto_refresh_tokens" json:"auto_refresh_tokens"`
	BaseURL            string   `yaml:"base_url" json:"base_url"`
	XStatsigID         string   `yaml:"x_statsig_id" json:"x_statsig_id"`
	DynamicStatsig     bool     `yaml:"dynamic_statsig" json:"dynamic_statsig"`
	Temporary          bool     `yaml:"temporary" json:"temporary"`
	ProxyURL           string   `yaml:"proxy_url" json:"proxy_url"`
	ProxyPoolURL       string   `yaml:"proxy_pool_url" json:"proxy_pool_url"`
	ProxyPoolInterval  int      `yaml:"proxy_pool_interval" json:"proxy_pool_interval"`
	RetryStatusCodes   []int    `yaml:"retry_status_codes" json:"retry_status_codes"`
	FilteredTags       []string `yaml:"filtered_tags" json:"filtered_tags"`
	ShowThinking       bool     `yaml:"show_thinking" json:"show_thinking"`
	ImageMode          string   `yaml:"image_mode" json:"image_mode"` // "url" or "base64"
	ImageCacheMaxMB    int      `yaml:"image_cache_max_size_mb" json:"image_cache_max_size_mb"`
	VideoCacheMaxMB    int      `yaml:"video_cache_max_size_mb" json:"video_cache_max_size_mb"`
}

// DeepSeek holds the DeepSeek-adapter tuning knobs.
type DeepSeek struct {
	BaseURL       string `yaml:"base_url" json:"base_url"`
	ProxyURL      string `yaml:"proxy_url" json:"proxy_url"`
	ProxyPoolURL  string `yaml:"proxy_pool_url" json:"proxy_pool_url"`
	WasmPath      string `yaml:"wasm_path" json:"wasm_path"`
}

// Config is the full config.yaml document.
type Config struct {
	Admin    Admin              `yaml:"admin" json:"admin"`
	Keys     []string           `yaml:"keys" json:"keys"`
	Projects map[string]Project `yaml:"projects" json:"projects"`
	Grok     Grok               `yaml:"grok" json:"grok"`
	DeepSeek DeepSeek           `yaml:"deepseek" json:"deepseek"`
}

func defaultGrok() Grok {
	return Grok{
		AutoRefreshTokens: true,
		BaseURL:           "https://grok.com",
		ProxyPoolInterval: 300,
		RetryStatusCodes:  []int{401, 429},
		FilteredTags:      []string{"xaiartifact", "xai:tool_usage_card", "grok:render"},
		ShowThinking:      true,
		ImageMode:         "url",
		ImageCacheMaxMB:   512,
		VideoCacheMaxMB:   1024,
	}
}

// Load reads and parses configFile, rewriting a plaintext admin password to
// its $encrypt$ form and persisting the rewrite. A missing or malformed file
// is returned as an error; callers at boot time should treat it as fatal.
func Load(configFile string) (*Config, error) {
	raw, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", configFile, err)
	}

	cfg := &Config{Grok: defaultGrok()}
	if err = yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configFile, err)
	}
	if cfg.Projects == nil {
		cfg.Projects = make(map[string]Project)
	}

	if cfg.Admin.Password != "" && !strings.HasPrefix(cfg.Admin.Password, EncryptedPrefix) {
		cfg.Admin.Password = EncryptPassword(cfg.Admin.Password)
		if err = Save(configFile, cfg); err != nil {
			return nil, fmt.Errorf("config: persist encrypted admin password: %w", err)
		}
	}

	return cfg, nil
}

// Save writes cfg back to configFile as YAML.
func Save(configFile string, cfg *Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(configFile, raw, 0o600)
}

// EncryptPassword applies the legacy unsalted-SHA-256 admin password scheme.
func EncryptPassword(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return EncryptedPrefix + hex.EncodeToString(sum[:])
}

// VerifyPassword checks candidate against an admin password that may be
// stored in either plaintext (first boot) or the $encrypt$ form.
func VerifyPassword(stored, candidate string) bool {
	if strings.HasPrefix(stored, EncryptedPrefix) {
		return stored == EncryptPassword(candidate)
	}
	return stored == candidate
}

// ProjectEnabled reports whether project's adapter should be registered.
func (c *Config) ProjectEnabled(project string) bool {
	if c == nil {
		return false
	}
	p, ok := c.Projects[project]
	return ok && p.Enabled
}

// HasKey reports whether key is a configured caller API key.
func (c *Config) HasKey(key string) bool {
	if c == nil || key == "" {
		return false
	}
	for _, k := range c.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// SecureCookies reports whether admin session cookies should set Secure,
// driven by NODE_ENV=production for compatibility with the original
// deployment convention.
func SecureCookies() bool {
	return strings.EqualFold(os.Getenv("NODE_ENV"), "production")
}
