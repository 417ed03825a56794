package registry

import (
	"context"
	"testing"

	"github.com/jellyfish-p/web-proxy-api/internal/executor"
	"github.com/jellyfish-p/web-proxy-api/internal/middle"
)

func stubAdapter(models ...string) *executor.Adapter {
	return &executor.Adapter{
		Models: func() []string { return models },
		Handle: func(context.Context, string, middle.Content) (*executor.Result, error) { return nil, nil },
		Release: func(executor.State) {},
	}
}

func TestRegisterBindsEveryModelID(t *testing.T) {
	r := New()
	r.Register("deepseek", stubAdapter("deepseek-chat", "deepseek-reasoner"))

	if r.Lookup("deepseek-chat") == nil || r.Lookup("deepseek-reasoner") == nil {
		t.Fatal("Lookup() returned nil for a registered model")
	}
	if r.Lookup("unknown-model") != nil {
		t.Fatal("Lookup() for unregistered model should return nil")
	}
}

func TestListReturnsOneEntryPerModel(t *testing.T) {
	r := New()
	r.Register("grok", stubAdapter("grok-3", "grok-4-heavy"))

	entries := r.List()
	if len(entries) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.OwnerTag != "grok" {
			t.Errorf("entry %+v has OwnerTag = %q, want grok", e, e.OwnerTag)
		}
	}
}

func TestRegisterOverwritesPreviousBindingForSameModel(t *testing.T) {
	r := New()
	r.Register("a", stubAdapter("shared-model"))
	r.Register("b", stubAdapter("shared-model"))

	entries := r.List()
	if len(entries) != 1 {
		t.Fatalf("List() = %d entries, want 1 (second Register should overwrite)", len(entries))
	}
	if entries[0].OwnerTag != "b" {
		t.Fatalf("OwnerTag = %q, want b (last writer wins)", entries[0].OwnerTag)
	}
}
