package services

import (
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func newTestLimiter(limit int, window, idleTTL time.Duration) *RateLimitService {
	return &RateLimitService{
		Limit:   limit,
		Window:  window,
		IdleTTL: idleTTL,
		clients: make(map[string]*clientEntry),
		now:     time.Now,
	}
}

func TestRateLimit_AllowsWithinLimit(t *testing.T) {
	svc := newTestLimiter(3, time.Minute, 15*time.Minute)

	for i := 0; i < 3; i++ {
		allowed, info := svc.Allow("10.0.0.1")
		if !allowed {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
		if want := 3 - (i + 1); info.Remaining != want {
			t.Fatalf("request %d remaining = %d, want %d", i+1, info.Remaining, want)
		}
	}

	allowed, info := svc.Allow("10.0.0.1")
	if allowed {
		t.Fatal("request over limit was allowed")
	}
	if info.Remaining != 0 {
		t.Fatalf("over-limit remaining = %d, want 0", info.Remaining)
	}
	if info.ResetTime == nil {
		t.Fatal("over-limit info has no reset time")
	}
}

func TestRateLimit_WindowResets(t *testing.T) {
	svc := newTestLimiter(2, time.Minute, 15*time.Minute)

	current := time.Now()
	svc.now = func() time.Time { return current }

	svc.Allow("10.0.0.1")
	svc.Allow("10.0.0.1")
	if allowed, _ := svc.Allow("10.0.0.1"); allowed {
		t.Fatal("third request in window was allowed")
	}

	current = current.Add(61 * time.Second)

	allowed, info := svc.Allow("10.0.0.1")
	if !allowed {
		t.Fatal("request in fresh window was denied")
	}
	if info.Remaining != 1 {
		t.Fatalf("fresh window remaining = %d, want 1", info.Remaining)
	}
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	svc := newTestLimiter(1, time.Minute, 15*time.Minute)

	if allowed, _ := svc.Allow("10.0.0.1"); !allowed {
		t.Fatal("first client denied")
	}
	if allowed, _ := svc.Allow("10.0.0.2"); !allowed {
		t.Fatal("second client throttled by first client's traffic")
	}
	if allowed, _ := svc.Allow("10.0.0.1"); allowed {
		t.Fatal("first client not throttled on second request")
	}
}

// Total admitted requests across concurrent callers must never exceed the
// limit, and every caller must get a definite answer.
func TestRateLimit_ConcurrentSingleClient(t *testing.T) {
	const limit = 50
	const callers = 200

	svc := newTestLimiter(limit, time.Minute, 15*time.Minute)

	var admitted int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if allowed, _ := svc.Allow("10.0.0.1"); allowed {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	if admitted != limit {
		t.Fatalf("admitted = %d, want %d", admitted, limit)
	}
}

func TestRateLimit_CleanupEvictsIdleClients(t *testing.T) {
	svc := newTestLimiter(10, time.Minute, 15*time.Minute)

	current := time.Now()
	svc.now = func() time.Time { return current }

	svc.Allow("idle-client")
	current = current.Add(20 * time.Minute)
	svc.Allow("active-client")

	if removed := svc.Cleanup(); removed != 1 {
		t.Fatalf("cleanup removed = %d, want 1", removed)
	}
	if n := svc.TrackedClients(); n != 1 {
		t.Fatalf("tracked clients = %d, want 1", n)
	}

	// An evicted client that returns starts a fresh window.
	if allowed, info := svc.Allow("idle-client"); !allowed || info.Remaining != 9 {
		t.Fatalf("returning client got allowed=%v remaining=%d, want fresh window", allowed, info.Remaining)
	}
}

func TestRateLimit_EvictedEntryNotResurrected(t *testing.T) {
	svc := newTestLimiter(5, time.Minute, 15*time.Minute)

	svc.Allow("10.0.0.1")

	svc.mu.RLock()
	stale := svc.clients["10.0.0.1"]
	svc.mu.RUnlock()

	// Simulate the janitor winning the race after a request grabbed a
	// reference to the entry.
	stale.mu.Lock()
	stale.evicted = true
	stale.mu.Unlock()
	svc.mu.Lock()
	delete(svc.clients, "10.0.0.1")
	svc.mu.Unlock()

	allowed, info := svc.Allow("10.0.0.1")
	if !allowed || info.Remaining != 4 {
		t.Fatalf("allowed=%v remaining=%d, want fresh window after eviction", allowed, info.Remaining)
	}

	stale.mu.Lock()
	count := stale.count
	stale.mu.Unlock()
	if count != 1 {
		t.Fatalf("evicted entry count = %d, write went to dead entry", count)
	}
}

func TestRateLimit_MiddlewareSetsHeadersAndThrottles(t *testing.T) {
	svc := newTestLimiter(2, time.Minute, 15*time.Minute)

	app := fiber.New()
	app.Use(svc.Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, resp.StatusCode)
		}
		if resp.Header.Get("X-RateLimit-Limit") != "2" {
			t.Fatalf("X-RateLimit-Limit = %q, want 2", resp.Header.Get("X-RateLimit-Limit"))
		}
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("over-limit request: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("over-limit status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("X-RateLimit-Remaining = %q, want 0", resp.Header.Get("X-RateLimit-Remaining"))
	}
	if resp.Header.Get("X-RateLimit-Reset") == "" {
		t.Fatal("X-RateLimit-Reset not set on 429")
	}
}

func TestRateLimit_MiddlewareDisabled(t *testing.T) {
	svc := newTestLimiter(1, time.Minute, 15*time.Minute)
	svc.Disabled = true

	app := fiber.New()
	app.Use(svc.Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("disabled limiter throttled request %d", i+1)
		}
	}
}

func TestRateLimit_MiddlewareKeysOnForwardedFor(t *testing.T) {
	svc := newTestLimiter(1, time.Minute, 15*time.Minute)

	app := fiber.New()
	app.Use(svc.Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	first := httptest.NewRequest("GET", "/", nil)
	first.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	resp, err := app.Test(first)
	if err != nil {
		t.Fatalf("first client: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("first client status = %d, want 200", resp.StatusCode)
	}

	second := httptest.NewRequest("GET", "/", nil)
	second.Header.Set("X-Forwarded-For", "203.0.113.8")
	resp, err = app.Test(second)
	if err != nil {
		t.Fatalf("second client: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("distinct forwarded client throttled, status = %d", resp.StatusCode)
	}

	repeat := httptest.NewRequest("GET", "/", nil)
	repeat.Header.Set("X-Forwarded-For", "203.0.113.7")
	resp, err = app.Test(repeat)
	if err != nil {
		t.Fatalf("repeat client: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("repeat forwarded client status = %d, want 429", resp.StatusCode)
	}
}
