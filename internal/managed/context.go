package managed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/queryir"
	"github.com/roach88/objgraph/internal/schema"
)

// BackingStore is the durable store behind a root context.
type BackingStore interface {
	Fetch(ctx context.Context, req queryir.FetchRequest) ([]ir.Row, error)
	Get(ctx context.Context, id ir.ObjectID) (ir.Row, error)
	Persist(ctx context.Context, cs ir.ChangeSet) error
	Close() error
}

// env is shared by every context of one tree.
type env struct {
	registry *schema.Registry
	store    BackingStore
	storeErr error // Why store is nil
	newID    func() ir.ObjectID
	log      *slog.Logger // Trace
	errLog   *slog.Logger // Swallowed errors
	closed   atomic.Bool
	seq      atomic.Int64
}

// Option configures a root context.
type Option func(*env)

// WithIDs overrides the identifier generator (UUIDv7 by default).
func WithIDs(next func() ir.ObjectID) Option {
	return func(e *env) { e.newID = next }
}

// WithLogger sets the trace logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *env) { e.log = l }
}

// WithErrorLog sets the logger that receives swallowed errors, one record
// each with the operation in the "op" attribute.
func WithErrorLog(l *slog.Logger) Option {
	return func(e *env) { e.errLog = l }
}

// WithStoreError records why the root has no store. Operations that need
// the store report it as the cause of their STORE_UNAVAILABLE error.
func WithStoreError(err error) Option {
	return func(e *env) { e.storeErr = err }
}

// NewUUIDv7 returns a time-ordered random identifier.
func NewUUIDv7() ir.ObjectID {
	id, err := uuid.NewV7()
	if err != nil {
		return ir.ObjectID(uuid.NewString())
	}
	return ir.ObjectID(id.String())
}

// Context is a serialized editing session. All of its state is touched
// only from its queue; every exported method may be called from any
// goroutine except a task already running on the same context's queue.
type Context struct {
	env    *env
	parent *Context
	name   string
	depth  int
	q      queue

	// Queue-confined state.
	records map[ir.ObjectID]*Record
	undo    []edit
	redo    []edit
}

// NewRoot returns the root of a context tree. A nil store yields a
// degraded root: reads see only pending records and saves at the root
// fail with STORE_UNAVAILABLE.
func NewRoot(reg *schema.Registry, store BackingStore, opts ...Option) *Context {
	e := &env{
		registry: reg,
		store:    store,
		newID:    NewUUIDv7,
		log:      slog.Default(),
		errLog:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return newContext(e, nil)
}

func newContext(e *env, parent *Context) *Context {
	c := &Context{env: e, parent: parent, records: map[ir.ObjectID]*Record{}}
	if parent == nil {
		c.name = "root"
	} else {
		c.name = fmt.Sprintf("ctx-%d", e.seq.Add(1))
		c.depth = parent.depth + 1
	}
	return c
}

// SubManager returns a new child context with its own queue.
func (c *Context) SubManager() *Context {
	return newContext(c.env, c)
}

// Parent returns the parent context, nil for the root.
func (c *Context) Parent() *Context { return c.parent }

// IsRoot reports whether c has no parent.
func (c *Context) IsRoot() bool { return c.parent == nil }

// Name identifies the context in logs.
func (c *Context) Name() string { return c.name }

// Registry returns the entity registry of the tree.
func (c *Context) Registry() *schema.Registry { return c.env.registry }

// Close marks the whole tree closed. Later operations that reach the store
// fail with CLOSED. The store itself is closed by whoever opened it.
func (c *Context) Close() {
	c.env.closed.Store(true)
}

// Sync runs fn on the queue and waits for it. Calling Sync on c from a
// task running on c deadlocks.
func (c *Context) Sync(fn func()) {
	done := make(chan struct{})
	c.q.enqueue(func() {
		defer close(done)
		fn()
	})
	<-done
}

// Async queues fn and returns immediately.
func (c *Context) Async(fn func()) {
	c.q.enqueue(fn)
}

// logError writes a swallowed error to the error log.
func (c *Context) logError(op string, err error) {
	c.env.errLog.Error(err.Error(), "op", op, "ctx", c.name)
}

func (c *Context) spec(op, entity string) (ir.EntitySpec, error) {
	spec, ok := c.env.registry.Lookup(entity)
	if !ok {
		return ir.EntitySpec{}, &Error{Code: CodeResolution, Op: op, Entity: entity, Message: "unknown entity"}
	}
	return spec, nil
}

// store returns the backing store of the tree, or why it cannot be used.
func (c *Context) store(op string) (BackingStore, error) {
	if c.env.closed.Load() {
		return nil, &Error{Code: CodeClosed, Op: op}
	}
	if c.env.store == nil {
		return nil, &Error{Code: CodeStoreUnavailable, Op: op, Err: c.env.storeErr}
	}
	return c.env.store, nil
}

// InsertRecord creates a record of entity with the given field values.
func (c *Context) InsertRecord(entity string, fields map[string]any) (rec *Record, err error) {
	c.Sync(func() { rec, err = c.insert(entity, fields) })
	return rec, err
}

func (c *Context) insert(entity string, values map[string]any) (*Record, error) {
	spec, err := c.spec("insert", entity)
	if err != nil {
		return nil, err
	}
	fields, err := convertFields(spec, values)
	if err != nil {
		return nil, &Error{Code: CodeResolution, Op: "insert", Entity: entity, Err: err}
	}
	for k, v := range fields {
		if ir.IsNull(v) {
			delete(fields, k)
		}
	}
	rec := newRecord(c, entity, c.env.newID(), fields)
	rec.state = stateInserted

	ed := c.beginEdit()
	ed.track(rec)
	c.records[rec.id] = rec
	c.commitEdit(ed)

	c.env.log.Debug("record inserted", "ctx", c.name, "entity", entity, "id", rec.id)
	return rec, nil
}

// AssignRecord returns this context's instance of the record with id.
func (c *Context) AssignRecord(id ir.ObjectID) (rec *Record, err error) {
	c.Sync(func() { rec, err = c.assign(id) })
	return rec, err
}

func (c *Context) assign(id ir.ObjectID) (*Record, error) {
	if rec, ok := c.records[id]; ok {
		if rec.IsDeleted() {
			return nil, &Error{Code: CodeNotFound, Op: "assign", Entity: rec.entity, ID: id, Message: "record is deleted"}
		}
		return rec, nil
	}
	v, err := c.resolveUp(id)
	if err != nil {
		return nil, err
	}
	rec := newRecord(c, v.entity, id, v.fields)
	c.records[id] = rec
	return rec, nil
}

// update applies values to rec as one edit. Runs on the queue.
func (c *Context) update(rec *Record, values map[string]any) error {
	own, err := c.own(rec)
	if err != nil {
		return err
	}
	if own.IsDeleted() {
		return &Error{Code: CodeNotFound, Op: "update", Entity: own.entity, ID: own.id, Message: "record is deleted"}
	}
	spec, err := c.spec("update", own.entity)
	if err != nil {
		return err
	}
	fields, err := convertFields(spec, values)
	if err != nil {
		return &Error{Code: CodeResolution, Op: "update", Entity: own.entity, ID: own.id, Err: err}
	}

	ed := c.beginEdit()
	ed.track(own)
	own.mu.Lock()
	own.assignLocked(fields)
	own.mu.Unlock()
	c.commitEdit(ed)
	return nil
}

// own returns c's instance of rec, resolving it when rec belongs elsewhere.
func (c *Context) own(rec *Record) (*Record, error) {
	if rec == nil {
		return nil, newError(CodeResolution, "resolve", "nil record")
	}
	if mine, ok := c.records[rec.id]; ok {
		return mine, nil
	}
	return c.assign(rec.id)
}

// sortedRecords returns the registered records in id order.
func (c *Context) sortedRecords() []*Record {
	out := make([]*Record, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// HasChanges reports whether the context holds unsaved edits.
func (c *Context) HasChanges() (pending bool) {
	c.Sync(func() {
		for _, r := range c.records {
			if r.HasChanges() {
				pending = true
				return
			}
		}
	})
	return pending
}

// Registered returns the records the context currently holds, in id order.
func (c *Context) Registered() (recs []*Record) {
	c.Sync(func() { recs = c.sortedRecords() })
	return recs
}
