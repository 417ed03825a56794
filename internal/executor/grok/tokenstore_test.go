package grok

import (
	"testing"

	"github.com/jellyfish-p/web-proxy-api/internal/credrepo"
	"github.com/jellyfish-p/web-proxy-api/internal/tokencache"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cache := tokencache.New(t.TempDir())
	repo := credrepo.NewSingleFileRepo(cache, "grok", "token.json")
	return NewStore(repo)
}

func TestStoreLoadEmptyReturnsEmptyTiers(t *testing.T) {
	s := newTestStore(t)
	snap, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Normal) != 0 || len(snap.Super) != 0 {
		t.Fatalf("Load() on empty store = %+v, want empty maps", snap)
	}
}

func TestUpdateEntryCreatesThenPersists(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateEntry("normal", "sso-1", func(e *TokenEntry) {
		e.RemainingQueries = 7
		e.Status = statusActive
	})
	if err != nil {
		t.Fatalf("UpdateEntry() error = %v", err)
	}

	snap, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	entry, ok := snap.Normal["sso-1"]
	if !ok {
		t.Fatal("expected sso-1 entry to exist after UpdateEntry")
	}
	if entry.RemainingQueries != 7 || entry.Status != statusActive {
		t.Fatalf("entry = %+v, want RemainingQueries=7 Status=active", entry)
	}
}

func TestUpdateEntryDefaultsNewEntryToUnused(t *testing.T) {
	s := newTestStore(t)

	var captured TokenEntry
	err := s.UpdateEntry("super", "new-sso", func(e *TokenEntry) {
		captured = *e
	})
	if err != nil {
		t.Fatalf("UpdateEntry() error = %v", err)
	}
	if captured.RemainingQueries != -1 || captured.HeavyRemainingQueries != -1 {
		t.Fatalf("new entry defaults = %+v, want both quota fields at -1 (unused)", captured)
	}
}

func TestEntryEligibility(t *testing.T) {
	cases := []struct {
		name string
		e    TokenEntry
		want bool
	}{
		{"active low failures", TokenEntry{Status: statusActive, FailedCount: 0}, true},
		{"expired", TokenEntry{Status: statusExpired, FailedCount: 0}, false},
		{"too many failures", TokenEntry{Status: statusActive, FailedCount: 3}, false},
	}
	for _, tc := range cases {
		if got := tc.e.eligible(); got != tc.want {
			t.Errorf("%s: eligible() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
