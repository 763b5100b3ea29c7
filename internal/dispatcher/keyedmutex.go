package dispatcher

import "sync"

// keyedMutex hands out a per-key lock, refcounted so idle keys do not
// accumulate forever. Process locks on the target identity DID before
// touching the record store, giving per-identity total ordering
// (spec.md §5) without serializing unrelated identities.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refCountedMutex
}

type refCountedMutex struct {
	mu  sync.Mutex
	ref int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refCountedMutex)}
}

// Lock acquires the lock for key, returning an unlock function the
// caller must invoke exactly once (typically via defer).
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]

	if !ok {
		entry = &refCountedMutex{}
		k.locks[key] = entry
	}

	entry.ref++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.ref--

		if entry.ref == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
