package credpool

import "testing"

func TestAcquireReleaseRoundRobin(t *testing.T) {
	s := New()
	s.Register([]string{"m1"}, []string{"x", "y"}, "deepseek")

	got := s.Acquire("m1")
	if got != "x" {
		t.Fatalf("Acquire() = %q, want x", got)
	}
	s.Release("x")

	s.Skip("m1", "x", 60_000)
	got = s.Acquire("m1")
	if got != "y" {
		t.Fatalf("Acquire() after skip = %q, want y", got)
	}
	s.Release("y")
}

func TestAcquireReturnsNilWhenAllInUse(t *testing.T) {
	s := New()
	s.Register([]string{"m1"}, []string{"a", "b"}, "grok")

	first := s.Acquire("m1")
	second := s.Acquire("m1")
	if first == "" || second == "" || first == second {
		t.Fatalf("expected two distinct leases, got %q %q", first, second)
	}

	if got := s.Acquire("m1"); got != "" {
		t.Fatalf("Acquire() = %q, want empty when all in-use", got)
	}
	if size := s.RingSize("m1"); size != 2 {
		t.Fatalf("RingSize() = %d, want 2", size)
	}
}

func TestSkipWindowExpires(t *testing.T) {
	s := New()
	s.Register([]string{"m1"}, []string{"x"}, "deepseek")

	got := s.Acquire("m1")
	if got != "x" {
		t.Fatalf("Acquire() = %q, want x", got)
	}
	s.Release("x")
	s.Skip("m1", "x", 60_000)
	if got := s.Acquire("m1"); got != "" {
		t.Fatalf("Acquire() during skip window = %q, want empty", got)
	}

	s.ClearSkip("m1", "x")
	if got := s.Acquire("m1"); got != "x" {
		t.Fatalf("Acquire() after ClearSkip = %q, want x", got)
	}
}

func TestSkipClampsNegativeDurationToNoWindow(t *testing.T) {
	s := New()
	s.Register([]string{"m1"}, []string{"x"}, "deepseek")

	got := s.Acquire("m1")
	if got != "x" {
		t.Fatalf("Acquire() = %q, want x", got)
	}
	s.Release("x")
	s.Skip("m1", "x", -1)
	if got := s.Acquire("m1"); got != "x" {
		t.Fatalf("Acquire() after negative-duration skip = %q, want x (no window, not a default)", got)
	}
}

func TestSkipZeroDurationAlsoClampsToNoWindow(t *testing.T) {
	s := New()
	s.Register([]string{"m1"}, []string{"x"}, "deepseek")

	got := s.Acquire("m1")
	if got != "x" {
		t.Fatalf("Acquire() = %q, want x", got)
	}
	s.Release("x")
	s.Skip("m1", "x", 0)
	if got := s.Acquire("m1"); got != "x" {
		t.Fatalf("Acquire() after zero-duration skip = %q, want x (no window)", got)
	}
}

func TestRegisterIsIdempotentAndUpdatesOwner(t *testing.T) {
	s := New()
	s.Register([]string{"m1"}, []string{"a"}, "")
	s.Register([]string{"m1"}, []string{"a", "b"}, "grok")

	if owner := s.Owner("m1"); owner != "grok" {
		t.Fatalf("Owner() = %q, want grok", owner)
	}
	if size := s.RingSize("m1"); size != 2 {
		t.Fatalf("RingSize() = %d, want 2 (register must not duplicate existing entries)", size)
	}
}
