package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

// Limiter admits or rejects an event against a per-key sliding window. The
// in-memory implementation below is sufficient for a single instance; a
// distributed backend is a drop-in replacement.
type Limiter interface {
	// Check records the attempt when admitted. On denial it returns the
	// whole seconds until the oldest counted event leaves the window.
	Check(key string, limit int, window time.Duration) (allowed bool, retryAfterSec int)
}

type MemoryLimiter struct {
	log *logger.Logger

	mu     sync.Mutex
	events map[string][]time.Time

	stopOnce sync.Once
	stop     chan struct{}

	now func() time.Time
}

// NewMemory builds the in-memory sliding-window limiter and starts a
// janitor that drops idle keys.
func NewMemory(log *logger.Logger) *MemoryLimiter {
	l := &MemoryLimiter{
		log:    log.With("component", "ratelimit"),
		events: make(map[string][]time.Time),
		stop:   make(chan struct{}),
		now:    time.Now,
	}
	go l.janitor()
	return l
}

func (l *MemoryLimiter) Check(key string, limit int, window time.Duration) (bool, int) {
	if limit <= 0 {
		return false, int(math.Ceil(window.Seconds()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	kept := l.events[key][:0]
	for _, ts := range l.events[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		l.events[key] = kept
		oldest := kept[0]
		retry := int(math.Ceil(oldest.Sub(cutoff).Seconds()))
		if retry < 1 {
			retry = 1
		}
		return false, retry
	}

	l.events[key] = append(kept, now)
	return true, 0
}

// Stop shuts the janitor down. Safe to call more than once.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *MemoryLimiter) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep drops keys whose newest event is older than any sane window.
func (l *MemoryLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	horizon := l.now().Add(-10 * time.Minute)
	for key, events := range l.events {
		if len(events) == 0 || events[len(events)-1].Before(horizon) {
			delete(l.events, key)
		}
	}
}
