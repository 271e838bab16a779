package managed

import (
	"sync"

	"github.com/roach88/objgraph/internal/metrics"
)

// queue is a FIFO of tasks run one at a time.
//
// No goroutine exists while the queue is empty: the first enqueue starts a
// worker, and the worker exits when it drains the queue. A context therefore
// needs no Close.
type queue struct {
	mu      sync.Mutex
	tasks   []func()
	running bool
}

// enqueue adds a task to the back of the queue.
// Thread-safe: may be called from any goroutine, including a running task.
func (q *queue) enqueue(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	start := !q.running
	q.running = true
	q.mu.Unlock()

	metrics.QueuedTasks.Inc()
	if start {
		go q.drain()
	}
}

func (q *queue) drain() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		// Release the closure so its captures can be collected.
		q.tasks[0] = nil
		if len(q.tasks) == 1 {
			q.tasks = q.tasks[:0]
		} else {
			q.tasks = q.tasks[1:]
		}
		q.mu.Unlock()

		metrics.QueuedTasks.Dec()
		task()
	}
}

// Len returns the number of waiting tasks.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
