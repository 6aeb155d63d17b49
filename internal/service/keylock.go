package service

import (
	"slices"
	"sync"
)

// keyLocker hands out one mutex per key and forgets keys nobody holds, so
// the map does not grow with every activity and member ever seen.
type keyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocker() *keyLocker {
	return &keyLocker{locks: make(map[string]*keyLock)}
}

// Lock acquires every key and returns the function that releases them.
// Keys are taken in sorted order so two callers locking overlapping sets
// cannot deadlock.
func (l *keyLocker) Lock(keys ...string) (unlock func()) {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	held := make([]*keyLock, 0, len(keys))
	for _, k := range keys {
		held = append(held, l.acquire(k))
	}

	return func() {
		for i := len(keys) - 1; i >= 0; i-- {
			l.release(keys[i], held[i])
		}
	}
}

func (l *keyLocker) acquire(key string) *keyLock {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return kl
}

func (l *keyLocker) release(key string, kl *keyLock) {
	kl.mu.Unlock()

	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// size is the number of keys currently tracked. Tests use it to check that
// released keys are forgotten.
func (l *keyLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
