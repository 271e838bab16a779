package objgraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/objgraph/internal/config"
	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/logsink"
	"github.com/roach88/objgraph/internal/managed"
	"github.com/roach88/objgraph/internal/memstore"
	"github.com/roach88/objgraph/internal/metrics"
	"github.com/roach88/objgraph/internal/pebblestore"
	"github.com/roach88/objgraph/internal/schema"
	"github.com/roach88/objgraph/internal/store"
)

// Option configures a Manager.
type Option func(*options)

type options struct {
	registry *schema.Registry
	sources  []schema.Source
	fsys     fs.FS
	fsRoot   string
	log      *slog.Logger
	errOut   io.Writer
	ids      func() ir.ObjectID
	metrics  prometheus.Registerer
}

// WithRegistry uses an already compiled model.
func WithRegistry(reg *schema.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithSchema compiles the model from CUE sources bundled with the binary.
func WithSchema(sources ...schema.Source) Option {
	return func(o *options) { o.sources = append(o.sources, sources...) }
}

// WithSchemaFS compiles every .cue file under root in fsys, typically an
// embed.FS.
func WithSchemaFS(fsys fs.FS, root string) Option {
	return func(o *options) { o.fsys, o.fsRoot = fsys, root }
}

// WithLogger sets the trace logger (slog.Default by default).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithErrorLog sends swallowed errors to w instead of the configured log
// file or stderr.
func WithErrorLog(w io.Writer) Option {
	return func(o *options) { o.errOut = w }
}

// WithIDs overrides the identifier generator.
func WithIDs(next func() ir.ObjectID) Option {
	return func(o *options) { o.ids = next }
}

// WithMetrics registers the context and store collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.metrics = reg }
}

// Manager owns a context tree and its store connection. It replaces a
// process-wide singleton: create one per store and pass it by reference.
type Manager struct {
	cfg  config.Config
	opts options

	once      sync.Once
	root      *Context
	registry  *schema.Registry
	initErr   error
	key       string
	conn      *conn
	collector prometheus.Collector
	errLog    *slog.Logger
	logFile   *os.File

	closed atomic.Bool
}

// New returns a manager for cfg. It does no I/O.
func New(cfg config.Config, opts ...Option) *Manager {
	def := config.Default()
	if cfg.Driver == "" {
		cfg.Driver = def.Driver
	}
	if cfg.Dir == "" {
		cfg.Dir = def.Dir
	}
	if cfg.AppID == "" {
		cfg.AppID = def.AppID
	}
	m := &Manager{cfg: cfg}
	for _, opt := range opts {
		opt(&m.opts)
	}
	if m.opts.log == nil {
		m.opts.log = slog.Default()
	}
	return m
}

// Root returns the long-lived root context.
func (m *Manager) Root() *Context {
	m.once.Do(m.bootstrap)
	return m.root
}

// Main returns a new child of the root on every call.
func (m *Manager) Main() *Context {
	return m.Root().SubManager()
}

// NewContext returns a new child of parent, or of the root when parent is
// nil.
func (m *Manager) NewContext(parent *Context) *Context {
	if parent == nil {
		return m.Main()
	}
	m.once.Do(m.bootstrap)
	return parent.SubManager()
}

// InitErr returns why the store could not be opened, nil when it was.
func (m *Manager) InitErr() error {
	m.once.Do(m.bootstrap)
	return m.initErr
}

// Registry returns the loaded model, nil when it failed to load.
func (m *Manager) Registry() *schema.Registry {
	m.once.Do(m.bootstrap)
	return m.registry
}

// Plan returns the migration the store applied when it was opened.
func (m *Manager) Plan() schema.Plan {
	m.once.Do(m.bootstrap)
	if m.conn == nil {
		return schema.Plan{}
	}
	if p, ok := m.conn.store.(interface{ Plan() schema.Plan }); ok {
		return p.Plan()
	}
	return schema.Plan{}
}

// Driver names the backing store implementation in use.
func (m *Manager) Driver() config.Driver { return m.cfg.Driver }

// Close marks every context of the tree closed and releases the store
// connection; the last manager sharing it closes it. Close is idempotent.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	// A manager closed before first use still hands out a (closed) root.
	m.once.Do(func() {
		m.initErr = managed.ErrClosed
		m.root = managed.NewRoot(nil, nil, managed.WithStoreError(managed.ErrClosed))
	})

	var errs []error
	if m.root != nil {
		m.root.Close()
	}
	if m.collector != nil && m.opts.metrics != nil {
		m.opts.metrics.Unregister(m.collector)
	}
	if m.conn != nil {
		if err := release(m.key, m.conn); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if m.logFile != nil {
		if err := m.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close error log: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) bootstrap() {
	log := m.opts.log
	m.errLog = m.openErrorLog()

	rootOpts := []managed.Option{
		managed.WithLogger(log),
		managed.WithErrorLog(m.errLog),
		managed.WithIDs(m.newIDs()),
	}
	if m.opts.metrics != nil {
		if err := metrics.Register(m.opts.metrics); err != nil {
			log.Warn("metrics registration failed", "err", err)
		}
	}

	st, err := m.open()
	if err != nil {
		m.initErr = err
		m.errLog.Error(err.Error(), logsink.OpKey, "bootstrap")
		log.Warn("store unavailable, continuing without it", "driver", m.cfg.Driver, "err", err)
		m.root = managed.NewRoot(m.registry, nil, append(rootOpts, managed.WithStoreError(err))...)
		return
	}
	log.Info("store opened", "driver", m.cfg.Driver, "location", m.key, "entities", len(m.registry.Names()))
	m.root = managed.NewRoot(m.registry, st, rootOpts...)
}

func (m *Manager) openErrorLog() *slog.Logger {
	switch {
	case m.opts.errOut != nil:
		return logsink.New(m.opts.errOut)
	case m.cfg.LogFile != "":
		f, err := logsink.OpenFile(m.cfg.LogFile)
		if err == nil {
			m.logFile = f
			return logsink.New(f)
		}
		m.opts.log.Warn("cannot open error log, using stderr", "path", m.cfg.LogFile, "err", err)
	}
	return logsink.New(os.Stderr)
}

func (m *Manager) newIDs() func() ir.ObjectID {
	switch {
	case m.opts.ids != nil:
		return m.opts.ids
	case m.cfg.IDs == config.IDsUUIDv4:
		return func() ir.ObjectID { return ir.ObjectID(uuid.NewString()) }
	default:
		return managed.NewUUIDv7
	}
}

// loadRegistry builds the model from the options, falling back to the
// configured schema directories.
func (m *Manager) loadRegistry() (*schema.Registry, error) {
	switch {
	case m.opts.registry != nil:
		return m.opts.registry, nil
	case len(m.opts.sources) > 0:
		return schema.CompileSources(m.opts.sources...)
	case m.opts.fsys != nil:
		return schema.LoadFS(m.opts.fsys, m.opts.fsRoot)
	case len(m.cfg.SchemaDirs) > 0:
		return schema.LoadDirs(m.cfg.SchemaDirs...)
	default:
		return nil, errors.New("no model: set schema_dirs or pass WithSchema")
	}
}

func (m *Manager) open() (managed.BackingStore, error) {
	reg, err := m.loadRegistry()
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	m.registry = reg
	if err := m.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	key := string(m.cfg.Driver) + ":" + m.cfg.Location()
	c, err := acquire(key, reg.Hash(), func() (managed.BackingStore, error) {
		return openStore(m.cfg, reg)
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", m.cfg.Driver, err)
	}
	m.key, m.conn = key, c

	if ps, ok := c.store.(*pebblestore.Store); ok && m.opts.metrics != nil {
		m.collector = pebblestore.NewCollector(ps)
		if err := m.opts.metrics.Register(m.collector); err != nil {
			m.collector = nil
		}
	}
	return c.store, nil
}

func openStore(cfg config.Config, reg *schema.Registry) (managed.BackingStore, error) {
	opts := schema.Options{Automatic: cfg.Migration.Automatic, InferMapping: cfg.Migration.InferMapping}
	if cfg.Driver == config.DriverMemory {
		return memstore.New(reg), nil
	}
	if cfg.Driver == config.DriverPostgres {
		st, err := store.OpenPostgres(context.Background(), cfg.DSN, reg, opts)
		if err != nil {
			return nil, err
		}
		return st, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	if cfg.Driver == config.DriverPebble {
		st, err := pebblestore.Open(cfg.Location(), reg, opts, nil)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	st, err := store.Open(cfg.Location(), reg, opts)
	if err != nil {
		return nil, err
	}
	return st, nil
}
