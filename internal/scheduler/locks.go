package scheduler

import "sync"

// keyedLocks is a per-monitor token table. A worker acquires the
// monitor's token before probing and releases it after persistence, so
// checks for one monitor never overlap while unrelated monitors stay
// independent.
type keyedLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{held: make(map[string]struct{})}
}

// TryAcquire takes the token for key if free. It never blocks: a held
// token means the previous tick is still running and the caller should
// skip.
func (k *keyedLocks) TryAcquire(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, taken := k.held[key]; taken {
		return false
	}
	k.held[key] = struct{}{}
	return true
}

func (k *keyedLocks) Release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.held, key)
}
