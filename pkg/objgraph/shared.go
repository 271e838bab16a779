package objgraph

import (
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/roach88/objgraph/internal/managed"
)

// conn is one open store shared by every manager of the process that
// names the same location.
type conn struct {
	once  sync.Once
	store managed.BackingStore
	model string // Registry hash the store was opened with
	err   error
	refs  int // Guarded by the table's bucket lock
}

var connections = xsync.NewMapOf[string, *conn]()

// acquire returns the connection for key, opening it on first use.
func acquire(key, model string, open func() (managed.BackingStore, error)) (*conn, error) {
	c, _ := connections.Compute(key, func(old *conn, loaded bool) (*conn, bool) {
		if !loaded {
			old = &conn{}
		}
		old.refs++
		return old, false
	})
	c.once.Do(func() {
		c.store, c.err = open()
		c.model = model
	})
	switch {
	case c.err != nil:
		err := c.err
		release(key, c)
		return nil, err
	case c.model != model:
		release(key, c)
		return nil, fmt.Errorf("store %s is already open with another model", key)
	}
	return c, nil
}

// release drops one reference and closes the store with the last one.
func release(key string, c *conn) error {
	last := false
	connections.Compute(key, func(old *conn, loaded bool) (*conn, bool) {
		if !loaded || old != c {
			return old, !loaded
		}
		old.refs--
		if old.refs > 0 {
			return old, false
		}
		last = true
		return nil, true
	})
	if last && c.store != nil {
		return c.store.Close()
	}
	return nil
}

// openConnections reports how many locations are open, for tests.
func openConnections() int { return connections.Size() }
