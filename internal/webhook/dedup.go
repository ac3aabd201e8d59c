// Package webhook tracks delivered event ids so retried webhook
// deliveries are processed once. Lark redelivers events it considers
// unacknowledged, sometimes seconds apart.
package webhook

import (
	"sync"
	"time"
)

// DefaultWindow is how long a seen id blocks redelivery.
const DefaultWindow = 5 * time.Minute

// Ledger is a sliding-window set of event ids. Safe for concurrent use.
type Ledger struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

// NewLedger returns a ledger with the given window, or DefaultWindow
// when it is not positive.
func NewLedger(window time.Duration) *Ledger {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Ledger{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Seen records id and reports whether it was already inside the
// window. Expired entries are pruned before the lookup so the map
// stays bounded by recent traffic. An empty id is never a duplicate;
// events without ids cannot be correlated.
func (l *Ledger) Seen(id string) bool {
	if id == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	for k, at := range l.seen {
		if at.Before(cutoff) {
			delete(l.seen, k)
		}
	}

	if _, ok := l.seen[id]; ok {
		return true
	}
	l.seen[id] = now
	return false
}

// Len reports the number of ids currently tracked.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
