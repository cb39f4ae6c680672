// Package keyedmutex provides per-key mutual exclusion for serializing
// state mutations of independent aggregates (one lock per user).
// Operations on different keys proceed in parallel; operations on the
// same key are applied one at a time.
// No external dependencies - uses only standard library.
package keyedmutex

import (
	"context"
	"sync"
)

// KeyedMutex provides a mutex per string key.
//
// Locks are reference-counted and removed from the internal map once the
// last holder releases them, so the map does not grow with the number of
// distinct keys ever seen.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates a new KeyedMutex.
func New() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[string]*entry),
	}
}

// Lock acquires the lock for the given key, blocking until it is available.
func (km *KeyedMutex) Lock(key string) {
	km.mu.Lock()
	e, ok := km.locks[key]
	if !ok {
		e = &entry{}
		km.locks[key] = e
	}
	e.refs++
	km.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the lock for the given key.
// Unlocking a key that is not held is a programming error and panics,
// mirroring sync.Mutex semantics.
func (km *KeyedMutex) Unlock(key string) {
	km.mu.Lock()
	e, ok := km.locks[key]
	if !ok {
		km.mu.Unlock()
		panic("keyedmutex: unlock of unlocked key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(km.locks, key)
	}
	km.mu.Unlock()

	e.mu.Unlock()
}

// WithLock runs fn while holding the lock for key.
func (km *KeyedMutex) WithLock(key string, fn func() error) error {
	km.Lock(key)
	defer km.Unlock(key)
	return fn()
}

// WithLockContext runs fn while holding the lock for key, checking the
// context before executing. The lock acquisition itself is not
// interruptible; critical sections in the engine are short and in-memory.
func (km *KeyedMutex) WithLockContext(ctx context.Context, key string, fn func(context.Context) error) error {
	km.Lock(key)
	defer km.Unlock(key)

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// Len returns the number of keys currently holding or waiting on a lock.
// Intended for tests and health reporting.
func (km *KeyedMutex) Len() int {
	km.mu.Lock()
	defer km.mu.Unlock()
	return len(km.locks)
}
