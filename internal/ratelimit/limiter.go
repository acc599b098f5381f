// Package ratelimit implements fixed-window request counters keyed by
// (identity-or-IP, endpoint class). The window trades boundary-burst
// precision for O(1) memory and update cost per key.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/gantrydb/gantry/internal/model"
)

// DefaultWindow is the counting window all class ceilings apply to.
const DefaultWindow = time.Minute

// DefaultLimits are the per-class request ceilings per window.
var DefaultLimits = map[model.EndpointClass]int{
	model.ClassPublic: 100,
	model.ClassRead:   60,
	model.ClassWrite:  20,
	model.ClassAdmin:  10,
	model.ClassDelete: 10,
}

// Config holds the limiter's tunables.
type Config struct {
	// Window is the counting window duration. Zero means DefaultWindow.
	Window time.Duration
	// Limits maps endpoint classes to per-window ceilings. Classes absent
	// from the map fall back to the public ceiling.
	Limits map[model.EndpointClass]int
	// IdleWindows is how many windows a bucket may sit untouched before the
	// sweeper discards it. Zero means 3.
	IdleWindows int
}

// Result reports one admission decision together with the header values the
// HTTP layer must expose.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time     // when the current window ends
	RetryAfter time.Duration // only meaningful when !Allowed
}

// bucket is one fixed-window counter. The mutex makes the read-modify-write
// (window check, increment, compare) atomic under concurrent bursts.
type bucket struct {
	mu    sync.Mutex
	start time.Time
	count int
}

// Limiter tracks request volume per (key, class) pair. Buckets live only in
// process memory; losing them on restart is acceptable.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.RWMutex
	buckets map[string]*bucket
}

// New creates a limiter. Zero-value config fields get defaults.
func New(cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Limits == nil {
		cfg.Limits = DefaultLimits
	}
	if cfg.IdleWindows <= 0 {
		cfg.IdleWindows = 3
	}
	return &Limiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Window returns the configured window duration.
func (l *Limiter) Window() time.Duration {
	return l.cfg.Window
}

// LimitFor returns the per-window ceiling for a class.
func (l *Limiter) LimitFor(class model.EndpointClass) int {
	if n, ok := l.cfg.Limits[class]; ok {
		return n
	}
	return l.cfg.Limits[model.ClassPublic]
}

// Allow records one request for the key within the class and decides whether
// it fits the window's ceiling. The counter resets exactly when the window
// elapses; it is never negative and never exceeds limit+1 observations per
// decision.
func (l *Limiter) Allow(key string, class model.EndpointClass) Result {
	limit := l.LimitFor(class)
	b := l.bucket(string(class) + "|" + key)

	now := l.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.start) >= l.cfg.Window {
		b.start = now
		b.count = 0
	}
	b.count++

	reset := b.start.Add(l.cfg.Window)
	if b.count > limit {
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			Reset:      reset,
			RetryAfter: l.cfg.Window - now.Sub(b.start),
		}
	}
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - b.count,
		Reset:     reset,
	}
}

func (l *Limiter) bucket(key string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[key]; ok {
		return b
	}
	b = &bucket{start: l.now()}
	l.buckets[key] = b
	return b
}

// Sweep discards buckets whose window started more than IdleWindows windows
// ago. Returns the number of buckets removed.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-time.Duration(l.cfg.IdleWindows) * l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		b.mu.Lock()
		stale := b.start.Before(cutoff)
		b.mu.Unlock()
		if stale {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep once per window until ctx is cancelled. Eviction is
// periodic rather than per-request to keep the hot path O(1).
func (l *Limiter) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(l.cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}

// Len reports the live bucket count. Used by tests and the sweeper metric.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}
