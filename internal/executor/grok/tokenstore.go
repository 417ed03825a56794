package grok

import (
	"sync"
	"time"

	"github.com/jellyfish-p/web-proxy-api/internal/credrepo"
)

// TokenEntry is one SSO token's bookkeeping record, matching the data
// model's grok token store fields exactly.
type TokenEntry struct {
	SSO                   string `json:"-"`
	CreatedTime           int64  `json:"createdTime"`
	RemainingQueries      int64  `json:"remainingQueries"`
	HeavyRemainingQueries int64  `json:"heavyremainingQueries"`
	Status                string `json:"status"`
	FailedCount           int    `json:"failedCount"`
	LastFailureTime       int64  `json:"lastFailureTime,omitempty"`
	LastFailureReason     string `json:"lastFailureReason,omitempty"`
	LastRefreshTime       int64  `json:"lastRefreshTime,omitempty"`
}

const statusActive = "active"
const statusExpired = "expired"

// eligible reports whether e may be selected at all, independent of model
// tier: not expired and fewer than 3 consecutive failures.
func (e TokenEntry) eligible() bool {
	return e.Status != statusExpired && e.FailedCount < 3
}

// Store is the single-document accounts/grok/token.json repository: two
// maps, ssoNormal and ssoSuper, guarded by a mutex for in-process safety.
type Store struct {
	mu     sync.Mutex
	update sync.Mutex // serializes UpdateEntry's read-modify-write
	repo   *credrepo.SingleFileRepo
}

// NewStore constructs a Store backed by repo.
func NewStore(repo *credrepo.SingleFileRepo) *Store {
	return &Store{repo: repo}
}

// Snapshot is the full in-memory view of both tiers at a point in time.
type Snapshot struct {
	Normal map[string]TokenEntry
	Super  map[string]TokenEntry
}

// Load reads both maps from disk.
func (s *Store) Load() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.repo.Get()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Normal: decodeTier(doc["ssoNormal"]),
		Super:  decodeTier(doc["ssoSuper"]),
	}, nil
}

// Save persists a full snapshot back to disk.
func (s *Store) Save(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := map[string]any{
		"ssoNormal": encodeTier(snap.Normal),
		"ssoSuper":  encodeTier(snap.Super),
	}
	return s.repo.Save(doc)
}

// UpdateEntry mutates a single entry in the named tier ("normal" or
// "super") via a read-modify-write cycle, and persists the result.
func (s *Store) UpdateEntry(tier, sso string, mutate func(e *TokenEntry)) error {
	s.update.Lock()
	defer s.update.Unlock()

	snap, err := s.Load()
	if err != nil {
		return err
	}
	m := snap.Normal
	if tier == "super" {
		m = snap.Super
	}
	e, ok := m[sso]
	if !ok {
		e = TokenEntry{SSO: sso, RemainingQueries: -1, HeavyRemainingQueries: -1, Status: statusActive}
	}
	mutate(&e)
	m[sso] = e
	return s.Save(snap)
}

func decodeTier(raw any) map[string]TokenEntry {
	out := make(map[string]TokenEntry)
	m, ok := raw.(map[string]any)
	if !ok {
		return out
	}
	for sso, v := range m {
		fields, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out[sso] = TokenEntry{
			SSO:                   sso,
			CreatedTime:           asInt64(fields["createdTime"]),
			RemainingQueries:      asInt64OrDefault(fields["remainingQueries"], -1),
			HeavyRemainingQueries: asInt64OrDefault(fields["heavyremainingQueries"], -1),
			Status:                asString(fields["status"], statusActive),
			FailedCount:           int(asInt64(fields["failedCount"])),
			LastFailureTime:       asInt64(fields["lastFailureTime"]),
			LastFailureReason:     asString(fields["lastFailureReason"], ""),
			LastRefreshTime:       asInt64(fields["lastRefreshTime"]),
		}
	}
	return out
}

func encodeTier(m map[string]TokenEntry) map[string]any {
	out := make(map[string]any, len(m))
	for sso, e := range m {
		out[sso] = map[string]any{
			"createdTime":           e.CreatedTime,
			"remainingQueries":      e.RemainingQueries,
			"heavyremainingQueries": e.HeavyRemainingQueries,
			"status":                e.Status,
			"failedCount":           e.FailedCount,
			"lastFailureTime":       e.LastFailureTime,
			"lastFailureReason":     e.LastFailureReason,
			"lastRefreshTime":       e.LastRefreshTime,
		}
	}
	return out
}

func asInt64(v any) int64 {
	return asInt64OrDefault(v, 0)
}

func asInt64OrDefault(v any, def int64) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return def
	}
}

func asString(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func nowMillis() int64 { return time.Now().UnixMilli() }
