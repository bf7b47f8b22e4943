package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// window is the trailing interval over which requests are counted
const window = time.Minute

// Standard rate limit header names
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Headers carries the rate limit response headers for one admission check.
// The HTTP layer copies them verbatim onto the outbound response.
type Headers map[string]string

// Limiter is an in-memory sliding window rate limiter.
//
// Each key keeps its own timestamp list behind its own lock, so distinct
// keys never contend. State is best-effort: it lives in process memory and
// resets on restart, which is acceptable because rate limiting is not a
// durability guarantee. For multi-instance deployments a shared store would
// be needed instead.
type Limiter struct {
	limit  int
	logger *zap.Logger

	mu   sync.Mutex // guards the keys map only, never held during admission
	keys map[string]*keyState

	now func() time.Time
}

// keyState holds the request history for a single key
type keyState struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// NewLimiter creates a limiter admitting at most requestsPerMinute requests
// per key in any trailing one-minute window.
func NewLimiter(requestsPerMinute int, logger *zap.Logger) *Limiter {
	return &Limiter{
		limit:  requestsPerMinute,
		logger: logger,
		keys:   make(map[string]*keyState),
		now:    time.Now,
	}
}

// Limit returns the configured requests-per-minute limit.
func (l *Limiter) Limit() int {
	return l.limit
}

// IsAllowed checks whether a request under the given key is admitted.
//
// Stale timestamps are purged lazily on each check; there is no background
// sweep of live keys. The admission decision and the timestamp append happen
// atomically under the key's lock, so concurrent callers sharing a key can
// never overshoot the limit.
func (l *Limiter) IsAllowed(key string) (bool, Headers) {
	state := l.state(key)

	state.mu.Lock()
	now := l.now()
	windowStart := now.Add(-window)

	fresh := state.timestamps[:0]
	for _, t := range state.timestamps {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	state.timestamps = fresh

	count := len(state.timestamps)
	allowed := count < l.limit

	var remaining int
	if allowed {
		state.timestamps = append(state.timestamps, now)
		remaining = l.limit - count - 1
	}
	state.mu.Unlock()

	headers := Headers{
		HeaderLimit:     strconv.Itoa(l.limit),
		HeaderRemaining: strconv.Itoa(max(0, remaining)),
		HeaderReset:     strconv.FormatInt(windowStart.Add(window).Unix(), 10),
	}

	if !allowed {
		l.logger.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Int("limit", l.limit),
			zap.Int("current_count", count))
	}

	return allowed, headers
}

// CleanupStaleEntries removes keys whose entire history has aged out of the
// window, bounding memory for keys that stopped sending requests. Call it
// periodically from a background task.
func (l *Limiter) CleanupStaleEntries() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	windowStart := l.now().Add(-window)
	cleaned := 0

	for key, state := range l.keys {
		state.mu.Lock()
		fresh := state.timestamps[:0]
		for _, t := range state.timestamps {
			if t.After(windowStart) {
				fresh = append(fresh, t)
			}
		}
		state.timestamps = fresh
		empty := len(state.timestamps) == 0
		state.mu.Unlock()

		if empty {
			delete(l.keys, key)
			cleaned++
		}
	}

	if cleaned > 0 {
		l.logger.Debug("rate limiter cleanup", zap.Int("cleaned_count", cleaned))
	}

	return cleaned
}

// StartCleanupWorker runs CleanupStaleEntries on the given interval until
// the context is cancelled.
func (l *Limiter) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.CleanupStaleEntries()
		case <-ctx.Done():
			return
		}
	}
}

// state returns the per-key state, creating it on first sight of the key
func (l *Limiter) state(key string) *keyState {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.keys[key]
	if !ok {
		state = &keyState{}
		l.keys[key] = state
	}
	return state
}
