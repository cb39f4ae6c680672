package keyedmutex

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := New()
	const workers = 16

	var inside int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := km.WithLock("user-1", func() error {
				if atomic.AddInt32(&inside, 1) != 1 {
					t.Error("critical section entered concurrently")
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestKeyedMutex_IndependentKeysDoNotBlock(t *testing.T) {
	km := New()
	km.Lock("user-1")
	defer km.Unlock("user-1")

	done := make(chan struct{})
	go func() {
		km.Lock("user-2")
		km.Unlock("user-2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestKeyedMutex_WithLockPropagatesError(t *testing.T) {
	km := New()
	boom := errors.New("boom")

	err := km.WithLock("user-1", func() error { return boom })
	assert.ErrorIs(t, err, boom)

	// The lock was released despite the error.
	assert.Zero(t, km.Len())
}

func TestKeyedMutex_WithLockContextHonoursCancellation(t *testing.T) {
	km := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := km.WithLockContext(ctx, "user-1", func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Zero(t, km.Len())
}

func TestKeyedMutex_LenDropsWhenLocksAreReleased(t *testing.T) {
	km := New()

	km.Lock("a")
	km.Lock("b")
	assert.Equal(t, 2, km.Len())

	km.Unlock("a")
	assert.Equal(t, 1, km.Len())

	km.Unlock("b")
	assert.Zero(t, km.Len())
}

func TestKeyedMutex_UnlockOfUnheldKeyPanics(t *testing.T) {
	km := New()
	assert.Panics(t, func() { km.Unlock("never-locked") })
}
