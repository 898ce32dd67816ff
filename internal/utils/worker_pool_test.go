package utils

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedWorkerPool_PreservesOrderPerKey(t *testing.T) {
	pool := NewKeyedWorkerPool(4, 8)

	var mu sync.Mutex
	seen := map[string][]int{}

	for i := 0; i < 50; i++ {
		for _, key := range []string{"B1", "B2", "B3"} {
			key, i := key, i
			assert.True(t, pool.Submit(key, func() {
				mu.Lock()
				seen[key] = append(seen[key], i)
				mu.Unlock()
			}))
		}
	}
	pool.Shutdown()

	for _, key := range []string{"B1", "B2", "B3"} {
		assert.Len(t, seen[key], 50)
		for i, v := range seen[key] {
			assert.Equal(t, i, v, "jobs for %s ran out of order", key)
		}
	}
}

func TestKeyedWorkerPool_DifferentKeysDoNotBlockEachOther(t *testing.T) {
	pool := NewKeyedWorkerPool(8, 1)
	defer pool.Shutdown()

	// Find two keys that hash to different workers.
	keyA, keyB := "B1", ""
	for _, k := range []string{"B2", "B3", "B4", "B5", "B6", "B7", "B8", "B9"} {
		if pool.slot(k) != pool.slot(keyA) {
			keyB = k
			break
		}
	}
	if keyB == "" {
		t.Skip("no key found on a different worker")
	}

	release := make(chan struct{})
	pool.Submit(keyA, func() { <-release })

	done := make(chan struct{})
	pool.Submit(keyB, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job for an unrelated key was blocked")
	}
	close(release)
}

func TestKeyedWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewKeyedWorkerPool(2, 2)

	var ran atomic.Int32
	pool.Submit("B1", func() { ran.Add(1) })
	pool.Shutdown()
	pool.Shutdown()

	assert.Equal(t, int32(1), ran.Load())
	assert.False(t, pool.Submit("B1", func() { ran.Add(1) }))
}

func TestKeyedWorkerPool_SubmitBlocksWhileQueueFull(t *testing.T) {
	pool := NewKeyedWorkerPool(1, 1)
	defer pool.Shutdown()

	release := make(chan struct{})
	started := make(chan struct{})
	pool.Submit("B1", func() {
		close(started)
		<-release
	})
	<-started
	// Worker busy, queue now holds one job.
	pool.Submit("B1", func() {})

	submitted := make(chan struct{})
	go func() {
		pool.Submit("B2", func() {})
		close(submitted)
	}()

	select {
	case <-submitted:
		t.Fatal("submit returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("submit did not unblock once the worker drained")
	}
}
