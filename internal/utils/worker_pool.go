package utils

import (
	"hash/fnv"
	"sync"
)

// Job represents a task to be executed by a worker.
type Job struct {
	Task func()
}

// KeyedWorkerPool runs jobs on a fixed set of workers. Jobs submitted with the
// same key always land on the same worker, so they run in submission order,
// while jobs with different keys run in parallel.
type KeyedWorkerPool struct {
	queues    []chan Job
	waitGroup sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewKeyedWorkerPool creates a pool of workers, each with a queue of queueSize jobs.
func NewKeyedWorkerPool(workers, queueSize int) *KeyedWorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	pool := &KeyedWorkerPool{
		queues: make([]chan Job, workers),
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		pool.queues[i] = make(chan Job, queueSize)
		go pool.worker(pool.queues[i])
	}

	return pool
}

// worker processes jobs from its queue until the queue is closed.
func (wp *KeyedWorkerPool) worker(queue <-chan Job) {
	defer wp.waitGroup.Done()
	for job := range queue {
		job.Task()
	}
}

// Submit queues task on the worker owning key. It blocks while that worker's
// queue is full and returns false once the pool is shut down.
func (wp *KeyedWorkerPool) Submit(key string, task func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return false
	}
	wp.queues[wp.slot(key)] <- Job{Task: task}
	return true
}

// Shutdown stops accepting jobs, lets queued jobs finish and waits for the workers.
func (wp *KeyedWorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	for _, q := range wp.queues {
		close(q)
	}
	wp.mu.Unlock()

	wp.waitGroup.Wait()
}

func (wp *KeyedWorkerPool) slot(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(wp.queues)))
}
