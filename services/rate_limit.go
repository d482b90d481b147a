package services

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/forgeyard/forge_api/dto"
	"github.com/forgeyard/forge_api/shared"
)

// clientEntry is one client's window state. Each entry carries its own mutex
// so concurrent requests from different clients never serialize behind a
// shared critical section; the service-level RWMutex guards only the map
// structure (insert and eviction).
type clientEntry struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	lastSeen    time.Time
	evicted     bool
}

type RateLimitService struct {
	appContext.DefaultService

	Limit    int
	Window   time.Duration
	IdleTTL  time.Duration
	Disabled bool

	mu      sync.RWMutex
	clients map[string]*clientEntry

	closed chan struct{}
	now    func() time.Time
}

const RATE_LIMIT_SVC = "rate_limit_svc"

func (svc RateLimitService) Id() string {
	return RATE_LIMIT_SVC
}

func (svc *RateLimitService) Configure(ctx *appContext.Context) error {
	svc.Limit = shared.GetEnvInt("RATE_LIMIT_REQUESTS", 500, 1, 100000)
	svc.Window = shared.GetEnvSeconds("RATE_LIMIT_WINDOW_SECONDS", time.Minute, time.Second, 24*time.Hour)
	svc.IdleTTL = shared.GetEnvSeconds("RATE_LIMIT_IDLE_TTL_SECONDS", 15*time.Minute, time.Minute, 24*time.Hour)
	svc.Disabled = shared.GetEnvBool("RATE_LIMIT_DISABLED", false)

	svc.clients = make(map[string]*clientEntry)
	svc.now = time.Now

	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitService) Start() error {
	svc.closed = make(chan struct{})

	if svc.Disabled {
		log.Warn("Rate limiting is DISABLED by configuration")
		return nil
	}

	go svc.startCleanupJob()

	log.WithFields(log.Fields{
		"limit":    svc.Limit,
		"window":   svc.Window,
		"idle_ttl": svc.IdleTTL,
	}).Info("Rate limiter started")
	return nil
}

func (svc *RateLimitService) Shutdown() {
	close(svc.closed)
}

// Allow records one request for the client and reports whether it fits in the
// current window. The hot path takes only the client's own lock plus a read
// lock on the map.
func (svc *RateLimitService) Allow(clientKey string) (bool, *dto.RateLimitInfo) {
	for {
		svc.mu.RLock()
		entry := svc.clients[clientKey]
		svc.mu.RUnlock()

		if entry == nil {
			entry = svc.insert(clientKey)
		}

		entry.mu.Lock()
		if entry.evicted {
			// Lost a race with the janitor; the entry is already unlinked,
			// so looking up again yields a fresh window.
			entry.mu.Unlock()
			continue
		}

		now := svc.now()
		if entry.count == 0 || now.Sub(entry.windowStart) >= svc.Window {
			entry.windowStart = now
			entry.count = 0
		}

		entry.count++
		entry.lastSeen = now

		allowed := entry.count <= svc.Limit
		remaining := svc.Limit - entry.count
		if remaining < 0 {
			remaining = 0
		}
		resetTime := entry.windowStart.Add(svc.Window)
		entry.mu.Unlock()

		return allowed, &dto.RateLimitInfo{
			Allowed:   allowed,
			Remaining: remaining,
			ResetTime: &resetTime,
		}
	}
}

func (svc *RateLimitService) insert(clientKey string) *clientEntry {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if existing := svc.clients[clientKey]; existing != nil {
		return existing
	}

	entry := &clientEntry{}
	svc.clients[clientKey] = entry
	return entry
}

// Middleware short-circuits over-limit clients with 429 before any other stage
// runs. It is registered ahead of authentication so floods are throttled
// before they can burn auth work or probe credentials unmetered.
func (svc *RateLimitService) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if svc.Disabled {
			return c.Next()
		}

		clientKey := getClientIP(c)
		allowed, info := svc.Allow(clientKey)

		svc.addRateLimitHeaders(c, info)

		if !allowed {
			rateLimitRejectionsTotal.Inc()
			log.WithFields(log.Fields{"client": clientKey}).Debug("Rate limit exceeded")
			return shared.ResponseTooManyRequests(c)
		}

		return c.Next()
	}
}

func (svc *RateLimitService) addRateLimitHeaders(c *fiber.Ctx, info *dto.RateLimitInfo) {
	if info == nil {
		return
	}

	c.Set("X-RateLimit-Limit", strconv.Itoa(svc.Limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))

	if info.ResetTime != nil {
		c.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))

		if !info.Allowed {
			if retryAfter := int(time.Until(*info.ResetTime).Seconds()); retryAfter > 0 {
				c.Set("Retry-After", strconv.Itoa(retryAfter))
			}
		}
	}
}

// Cleanup evicts clients idle past the staleness TTL. Staleness is decided
// under each entry's own lock (so an in-flight increment wins the race), and
// the map unlink happens under the structural lock afterwards. The evicted
// flag prevents a removed entry from being written through by a request that
// already held a reference to it.
func (svc *RateLimitService) Cleanup() int {
	svc.mu.RLock()
	candidates := make(map[string]*clientEntry, len(svc.clients))
	for key, entry := range svc.clients {
		candidates[key] = entry
	}
	svc.mu.RUnlock()

	cutoff := svc.now().Add(-svc.IdleTTL)
	removed := 0

	for key, entry := range candidates {
		entry.mu.Lock()
		stale := entry.lastSeen.Before(cutoff)
		if stale {
			entry.evicted = true
		}
		entry.mu.Unlock()

		if !stale {
			continue
		}

		svc.mu.Lock()
		if svc.clients[key] == entry {
			delete(svc.clients, key)
			removed++
		}
		svc.mu.Unlock()
	}

	return removed
}

func (svc *RateLimitService) TrackedClients() int {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return len(svc.clients)
}

func (svc *RateLimitService) startCleanupJob() {
	interval := svc.IdleTTL / 2
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-svc.closed:
			return
		case <-ticker.C:
			if removed := svc.Cleanup(); removed > 0 {
				log.WithField("count", removed).Info("Evicted stale rate limit entries")
			}
			rateLimitTrackedClients.Set(float64(svc.TrackedClients()))
		}
	}
}

// getClientIP resolves the stable client key, trusting proxy headers first.
func getClientIP(c *fiber.Ctx) string {
	forwarded := c.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			if ip := strings.TrimSpace(ips[0]); ip != "" {
				return ip
			}
		}
	}

	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	if cfIP := c.Get("CF-Connecting-IP"); cfIP != "" {
		return cfIP
	}

	ip, _, err := net.SplitHostPort(c.Context().RemoteAddr().String())
	if err != nil {
		return c.Context().RemoteAddr().String()
	}

	return ip
}
