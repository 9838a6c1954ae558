package habit

import "sync"

// KeyedMutex serializes work per task ID. The progress-mark path and the
// reminder re-arm path both run read-decide-write sequences that must not
// interleave for the same task; everything else is free to run in parallel.
//
// Entries are never evicted. The key space is the user's task set, which is
// small by construction.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// Lock acquires the mutex for id and returns its unlock func.
func (k *KeyedMutex) Lock(id int64) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[int64]*sync.Mutex{}
	}
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
