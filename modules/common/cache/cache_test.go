package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestGetMissingKey(t *testing.T) {
	s := New[string](10, time.Minute)
	if _, ok := s.Get("absent"); ok {
		t.Fatal("expected miss for key that was never set")
	}
}

func TestSetAndGet(t *testing.T) {
	s := New[string](10, time.Minute)
	s.Set("k", "v")
	got, ok := s.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if got != "v" {
		t.Fatalf("got %q, want %q", got, "v")
	}
}

func TestZeroTTLIsAlreadyExpired(t *testing.T) {
	s := New[string](10, time.Minute)
	s.SetTTL("k", "v", 0)
	if _, ok := s.Get("k"); ok {
		t.Fatal("entry with zero TTL must be treated as expired")
	}
	if s.Len() != 0 {
		t.Fatalf("expired entry must be removed on access, Len = %d", s.Len())
	}
}

func TestExpiredEntryDeletedOnGet(t *testing.T) {
	s := New[int](10, time.Minute)
	s.SetTTL("k", 1, -time.Second)
	if _, ok := s.Get("k"); ok {
		t.Fatal("expected expired entry to report absent")
	}
}

func TestLRUEvictsOldest(t *testing.T) {
	s := New[int](3, time.Minute)
	for i := 0; i < 3; i++ {
		s.Set(fmt.Sprintf("k%d", i), i)
	}

	s.Set("k3", 3)

	if _, ok := s.Get("k0"); ok {
		t.Fatal("k0 should have been evicted as least recently used")
	}
	for _, key := range []string{"k1", "k2", "k3"} {
		if _, ok := s.Get(key); !ok {
			t.Fatalf("%s should still be present", key)
		}
	}
}

func TestGetRefreshesRecency(t *testing.T) {
	s := New[int](3, time.Minute)
	s.Set("k0", 0)
	s.Set("k1", 1)
	s.Set("k2", 2)

	// Touch k0 so k1 becomes the eviction candidate
	if _, ok := s.Get("k0"); !ok {
		t.Fatal("expected hit on k0")
	}

	s.Set("k3", 3)

	if _, ok := s.Get("k1"); ok {
		t.Fatal("k1 should have been evicted, not the recently-read k0")
	}
	if _, ok := s.Get("k0"); !ok {
		t.Fatal("k0 should have survived eviction after being accessed")
	}
}

func TestSetExistingKeyDoesNotEvict(t *testing.T) {
	s := New[int](2, time.Minute)
	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("a", 10)

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if got, _ := s.Get("a"); got != 10 {
		t.Fatalf("a = %d, want 10", got)
	}
	if _, ok := s.Get("b"); !ok {
		t.Fatal("updating an existing key must not evict others")
	}
}

func TestCleanupRemovesOnlyExpired(t *testing.T) {
	s := New[int](10, time.Minute)
	s.Set("live", 1)
	s.SetTTL("dead1", 2, -time.Second)
	s.SetTTL("dead2", 3, -time.Second)

	removed := s.Cleanup()
	if removed != 2 {
		t.Fatalf("Cleanup removed %d, want 2", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	if _, ok := s.Get("live"); !ok {
		t.Fatal("live entry must survive cleanup")
	}
}

func TestKeyHashesPayloadOnly(t *testing.T) {
	payload := "iVBORw0KGgoAAAANSUhEUg=="
	a := Key("data:image/png;base64," + payload)
	b := Key("data:image/jpeg;base64," + payload)
	if a != b {
		t.Fatal("identical payloads with different mime prefixes must share a key")
	}

	c := Key("data:image/png;base64,different")
	if a == c {
		t.Fatal("different payloads must not collide")
	}

	if a != Key(payload) {
		t.Fatal("bare payload must hash the same as its data URL form")
	}
}

func TestDeleteAndClear(t *testing.T) {
	s := New[int](10, time.Minute)
	s.Set("a", 1)
	s.Set("b", 2)

	s.Delete("a")
	if _, ok := s.Get("a"); ok {
		t.Fatal("a should be gone after Delete")
	}

	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("Len = %d after Clear, want 0", s.Len())
	}
}

func TestStartSweeperStops(t *testing.T) {
	s := New[int](10, time.Minute)
	s.SetTTL("dead", 1, -time.Second)

	stop := cacheSweep(t, s)
	defer stop()
}

func cacheSweep(t *testing.T, s *Store[int]) func() {
	t.Helper()
	stop := StartSweeper(5*time.Millisecond, s)

	deadline := time.After(time.Second)
	for s.Len() > 0 {
		select {
		case <-deadline:
			t.Fatal("sweeper did not remove expired entry in time")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	return stop
}
