package signal

import (
	"sync"
	"time"

	"github.com/dkeye/Peer/internal/domain"
)

// RateLimiter is a sliding window over negotiation-starting events per
// participant. A non-positive limit disables it.
type RateLimiter struct {
	mu       sync.Mutex
	history  map[domain.ParticipantID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[domain.ParticipantID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(pid domain.ParticipantID) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	fresh := rl.prune(pid, now)
	if len(fresh) >= rl.limit {
		rl.history[pid] = fresh
		return false
	}
	rl.history[pid] = append(fresh, now)
	return true
}

// Retry reports how long pid must wait before Allow can succeed again.
func (rl *RateLimiter) Retry(pid domain.ParticipantID) time.Duration {
	if rl == nil || rl.limit <= 0 {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	fresh := rl.prune(pid, now)
	rl.history[pid] = fresh
	if len(fresh) < rl.limit {
		return 0
	}
	return fresh[0].Add(rl.interval).Sub(now)
}

// prune returns the attempts of pid still inside the window. Callers hold mu.
func (rl *RateLimiter) prune(pid domain.ParticipantID, now time.Time) []time.Time {
	windowStart := now.Add(-rl.interval)
	attempts := rl.history[pid]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}

// Forget drops the history of a participant that left.
func (rl *RateLimiter) Forget(pid domain.ParticipantID) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	delete(rl.history, pid)
	rl.mu.Unlock()
}
