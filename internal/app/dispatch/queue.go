// Package dispatch runs tasks in arrival order per key while letting
// different keys proceed independently.
package dispatch

import (
	"sync"

	"github.com/gammazero/deque"
	"github.com/rs/zerolog/log"
)

// Queue keeps one FIFO per key and drains it on a dedicated goroutine that
// exits when the FIFO is empty. A stuck task only stalls its own key.
type Queue[K comparable] struct {
	mu      sync.Mutex
	pending map[K]*deque.Deque[func()]
	closed  bool
	wg      sync.WaitGroup
}

func NewQueue[K comparable]() *Queue[K] {
	return &Queue[K]{
		pending: make(map[K]*deque.Deque[func()]),
	}
}

// Submit enqueues task behind every earlier task for key. It never blocks and
// reports false once the queue is closed.
func (q *Queue[K]) Submit(key K, task func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if d, ok := q.pending[key]; ok {
		d.PushBack(task)
		return true
	}
	d := deque.New[func()]()
	d.PushBack(task)
	q.pending[key] = d
	q.wg.Add(1)
	go q.drain(key)
	return true
}

func (q *Queue[K]) drain(key K) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		d := q.pending[key]
		if d.Len() == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		task := d.PopFront()
		q.mu.Unlock()
		q.run(key, task)
	}
}

func (q *Queue[K]) run(key K, task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "dispatch").Interface("key", key).Interface("panic", r).Msg("task panicked")
		}
	}()
	task()
}

// Active reports how many keys currently have queued or running work.
func (q *Queue[K]) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close rejects new work and waits for queued tasks to finish.
func (q *Queue[K]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
}
