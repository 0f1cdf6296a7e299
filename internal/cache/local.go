package cache

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process key set with expiry, used when Redis is not configured.
type Local struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

// NewLocal returns an empty Local store.
func NewLocal() *Local {
	return &Local{keys: make(map[string]time.Time), now: time.Now}
}

// Claim sets key only if it is absent or expired and reports whether this call set it.
func (l *Local) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	l.keys[key] = now.Add(ttl)

	if len(l.keys) > 4096 {
		for k, exp := range l.keys {
			if !now.Before(exp) {
				delete(l.keys, k)
			}
		}
	}
	return true, nil
}
