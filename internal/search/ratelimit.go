package search

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultQueryRate is the number of search queries per second allowed per
// caller key when no explicit limit is configured.
const defaultQueryRate = 10

// defaultQueryBurst is the maximum burst size per caller key when no
// explicit burst is configured.
const defaultQueryBurst = 20

// keyLimiter holds a token-bucket rate limiter and the last time it was
// seen, used to evict stale entries from the limiter map.
type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-caller-key token-bucket rate limit over
// search queries. Distinct keys (e.g. "cli-watch", "cli-interactive") get
// independent budgets; a single local user rarely needs more than one, but
// the watch loop and an interactive search session should not starve each
// other. Stale entries are evicted periodically to bound memory.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*keyLimiter
	rps      rate.Limit
	burst    int
	log      *slog.Logger
}

// NewRateLimiter constructs a RateLimiter and starts the background
// eviction goroutine. The goroutine exits when the returned stop function
// is called.
func NewRateLimiter(rps float64, burst int, log *slog.Logger) (*RateLimiter, func()) {
	if rps <= 0 {
		rps = defaultQueryRate
	}
	if burst <= 0 {
		burst = defaultQueryBurst
	}

	rl := &RateLimiter{
		limiters: make(map[string]*keyLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		log:      log,
	}

	stopCh := make(chan struct{})
	go rl.evictLoop(stopCh)

	return rl, func() { close(stopCh) }
}

// Allow reports whether a query under key may proceed now, consuming a
// token if so.
func (rl *RateLimiter) Allow(key string) bool {
	limiter := rl.getLimiter(key)
	ok := limiter.Allow()
	if !ok && rl.log != nil {
		rl.log.Warn("search rate limit exceeded", slog.String("key", key))
	}
	return ok
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[key]
	if !ok {
		entry = &keyLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (rl *RateLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

func (rl *RateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-5 * time.Minute)
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}
