package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/forgeyard/forge_api/model"
)

func newTestRecord(id string, uses int, ttl time.Duration) *model.TokenRecord {
	now := time.Now()
	return &model.TokenRecord{
		ID:            id,
		UserID:        "u-1",
		Username:      "alice",
		Role:          "user",
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
		RemainingUses: uses,
	}
}

func TestMemoryStore_ConsumeDecrements(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	if err := store.Put(ctx, newTestRecord("t1", 3, time.Hour)); err != nil {
		t.Fatalf("put: %v", err)
	}

	for want := 2; want >= 0; want-- {
		record, err := store.Consume(ctx, "t1")
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		if record.RemainingUses != want {
			t.Fatalf("remaining uses = %d, want %d", record.RemainingUses, want)
		}
	}

	if _, err := store.Consume(ctx, "t1"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("consume after exhaustion = %v, want ErrTokenNotFound", err)
	}
}

func TestMemoryStore_ExhaustedTokenUnlinked(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	if err := store.Put(ctx, newTestRecord("t1", 1, time.Hour)); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, err := store.Consume(ctx, "t1"); err != nil {
		t.Fatalf("consume: %v", err)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("count after exhaustion = %d, want 0", n)
	}
}

// The use budget must hold exactly under concurrency: with N uses and more
// than N competing callers, exactly N succeed.
func TestMemoryStore_ConcurrentConsumeRespectsBudget(t *testing.T) {
	const maxUses = 100
	const callers = 250

	store := NewMemoryTokenStore()
	ctx := context.Background()

	if err := store.Put(ctx, newTestRecord("t1", maxUses, time.Hour)); err != nil {
		t.Fatalf("put: %v", err)
	}

	var allowed, rejected int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := store.Consume(ctx, "t1")
			switch {
			case err == nil:
				atomic.AddInt64(&allowed, 1)
			case errors.Is(err, ErrTokenNotFound):
				atomic.AddInt64(&rejected, 1)
			default:
				t.Errorf("unexpected consume error: %v", err)
			}
		}()
	}

	close(start)
	wg.Wait()

	if allowed != maxUses {
		t.Fatalf("allowed = %d, want %d", allowed, maxUses)
	}
	if rejected != callers-maxUses {
		t.Fatalf("rejected = %d, want %d", rejected, callers-maxUses)
	}
}

// Remaining-use values handed back to concurrent winners must be distinct:
// no two consumers may observe the same post-decrement count.
func TestMemoryStore_ConcurrentConsumeDistinctCounts(t *testing.T) {
	const maxUses = 50

	store := NewMemoryTokenStore()
	ctx := context.Background()

	if err := store.Put(ctx, newTestRecord("t1", maxUses, time.Hour)); err != nil {
		t.Fatalf("put: %v", err)
	}

	var mu sync.Mutex
	seen := make(map[int]bool)
	var wg sync.WaitGroup

	for i := 0; i < maxUses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := store.Consume(ctx, "t1")
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			mu.Lock()
			if seen[record.RemainingUses] {
				t.Errorf("duplicate remaining-uses value %d", record.RemainingUses)
			}
			seen[record.RemainingUses] = true
			mu.Unlock()
		}()
	}

	wg.Wait()

	if len(seen) != maxUses {
		t.Fatalf("distinct counts = %d, want %d", len(seen), maxUses)
	}
}

func TestMemoryStore_RevokeIsImmediateAndIdempotent(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	if err := store.Put(ctx, newTestRecord("t1", 10, time.Hour)); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := store.Revoke(ctx, "t1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := store.Consume(ctx, "t1"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("consume after revoke = %v, want ErrTokenNotFound", err)
	}

	// Revoking again, or revoking an id that never existed, is not an error.
	if err := store.Revoke(ctx, "t1"); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if err := store.Revoke(ctx, "never-issued"); err != nil {
		t.Fatalf("revoke unknown: %v", err)
	}
}

func TestMemoryStore_ExpiredTokenRejected(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	current := time.Now()
	store.now = func() time.Time { return current }

	if err := store.Put(ctx, newTestRecord("t1", 5, time.Minute)); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, err := store.Consume(ctx, "t1"); err != nil {
		t.Fatalf("consume before expiry: %v", err)
	}

	current = current.Add(2 * time.Minute)

	if _, err := store.Consume(ctx, "t1"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("consume after expiry = %v, want ErrTokenNotFound", err)
	}

	n, _ := store.Count(ctx)
	if n != 0 {
		t.Fatalf("expired entry still linked, count = %d", n)
	}
}

func TestMemoryStore_SweepExpired(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	current := time.Now()
	store.now = func() time.Time { return current }

	if err := store.Put(ctx, newTestRecord("short", 5, time.Minute)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, newTestRecord("long", 5, time.Hour)); err != nil {
		t.Fatalf("put: %v", err)
	}

	current = current.Add(10 * time.Minute)

	if n := store.SweepExpired(); n != 1 {
		t.Fatalf("swept = %d, want 1", n)
	}

	if _, err := store.Consume(ctx, "short"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("swept token still consumable")
	}
	if _, err := store.Consume(ctx, "long"); err != nil {
		t.Fatalf("live token swept: %v", err)
	}
}

func TestSplitGroups(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"dev", 1},
		{"dev,ops", 2},
		{" dev , ops , ", 2},
		{",,", 0},
	}

	for _, tc := range cases {
		if got := splitGroups(tc.in); len(got) != tc.want {
			t.Errorf("splitGroups(%q) = %v, want %d parts", tc.in, got, tc.want)
		}
	}
}
