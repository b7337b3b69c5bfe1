package session

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore() *Store {
	return New(zerolog.Nop())
}

func TestDescription_AbsentSession(t *testing.T) {
	s := newTestStore()

	if _, ok := s.Description("nobody"); ok {
		t.Error("Description reported context for an unknown session")
	}
}

func TestSetDescription_LastWriteWins(t *testing.T) {
	s := newTestStore()
	now := time.Now()

	s.SetDescription("cam-1", "an empty hallway", now)
	s.SetDescription("cam-1", "a person in the hallway", now.Add(time.Second))

	desc, ok := s.Description("cam-1")
	if !ok {
		t.Fatal("Description missing after SetDescription")
	}
	if desc != "a person in the hallway" {
		t.Errorf("Description = %q, want the later write", desc)
	}

	ctx, ok := s.Snapshot("cam-1")
	if !ok {
		t.Fatal("Snapshot missing")
	}
	if ctx.SessionID != "cam-1" || !ctx.LastUpdatedAt.Equal(now.Add(time.Second)) {
		t.Errorf("Snapshot = %+v", ctx)
	}
}

func TestDescription_SessionWithOnlyCallClock(t *testing.T) {
	s := newTestStore()

	// AllowCall creates the session but no description exists yet.
	s.AllowCall("cam-2", time.Second, time.Now())

	if _, ok := s.Description("cam-2"); ok {
		t.Error("Description reported context before any description was set")
	}
	if _, ok := s.Snapshot("cam-2"); ok {
		t.Error("Snapshot reported context before any description was set")
	}
}

func TestAllowCall_Throttles(t *testing.T) {
	s := newTestStore()
	base := time.Now()

	if !s.AllowCall("cam-1", 2*time.Second, base) {
		t.Fatal("first call was throttled")
	}
	if s.AllowCall("cam-1", 2*time.Second, base.Add(500*time.Millisecond)) {
		t.Error("call inside the interval was admitted")
	}
	if s.AllowCall("cam-1", 2*time.Second, base.Add(1900*time.Millisecond)) {
		t.Error("call just inside the interval was admitted")
	}
	if !s.AllowCall("cam-1", 2*time.Second, base.Add(2*time.Second)) {
		t.Error("call after the interval was throttled")
	}
}

func TestAllowCall_PerSession(t *testing.T) {
	s := newTestStore()
	base := time.Now()

	s.AllowCall("cam-1", 2*time.Second, base)
	if !s.AllowCall("cam-2", 2*time.Second, base) {
		t.Error("throttle for one session leaked into another")
	}
}

func TestAllowCall_BoundsConcurrentRate(t *testing.T) {
	s := newTestStore()
	now := time.Now()

	var admitted int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.AllowCall("cam-1", time.Second, now) {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("%d concurrent calls admitted within one interval, want 1", admitted)
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore()

	s.SetDescription("cam-1", "a desk", time.Now())
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}

	s.Remove("cam-1")
	if s.Len() != 0 {
		t.Errorf("Len = %d after Remove, want 0", s.Len())
	}
	if _, ok := s.Description("cam-1"); ok {
		t.Error("Description survived Remove")
	}

	// Removing twice is harmless.
	s.Remove("cam-1")
}

func TestConcurrentSessions(t *testing.T) {
	s := newTestStore()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%8))
			s.SetDescription(id, "scene", time.Now())
			s.Description(id)
			s.AllowCall(id, time.Millisecond, time.Now())
		}(i)
	}
	wg.Wait()

	if s.Len() != 8 {
		t.Errorf("Len = %d, want 8", s.Len())
	}
}
