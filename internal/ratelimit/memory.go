package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter keeps a token bucket per client in process memory.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*memoryEntry
	limit    int
	period   time.Duration
}

type memoryEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter creates an in-memory limiter allowing limit requests per
// period for each client.
func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limiters: make(map[string]*memoryEntry),
		limit:    limit,
		period:   period,
	}
}

// Check reports whether the client may proceed and consumes a token if so.
func (l *MemoryLimiter) Check(_ context.Context, clientID string) (Decision, error) {
	now := time.Now()

	l.mu.Lock()
	entry, ok := l.limiters[clientID]
	if !ok {
		perSecond := float64(l.limit) / l.period.Seconds()
		entry = &memoryEntry{limiter: rate.NewLimiter(rate.Limit(perSecond), l.limit)}
		l.limiters[clientID] = entry
	}
	entry.lastSeen = now
	if len(l.limiters) > 10000 {
		l.evictStaleLocked(now)
	}
	l.mu.Unlock()

	allowed := entry.limiter.Allow()
	remaining := int(math.Floor(entry.limiter.Tokens()))
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   allowed,
		Remaining: remaining,
		Reset:     now.Add(l.period).Unix(),
	}, nil
}

// evictStaleLocked drops clients idle for more than one full period. Caller
// holds the lock.
func (l *MemoryLimiter) evictStaleLocked(now time.Time) {
	for id, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > l.period {
			delete(l.limiters, id)
		}
	}
}
