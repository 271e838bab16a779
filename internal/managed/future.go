package managed

import (
	"context"
	"sync"
)

// Future is the outcome of a save. It is fulfilled exactly once, after the
// last hop ran or the first hop failed.
type Future struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) fulfill(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed when the save finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Err returns the save's error, or nil while it is still running.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the save finished or ctx is done. Giving up on ctx does
// not cancel the save.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
