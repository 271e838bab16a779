// Package logsink writes swallowed errors as one tab-separated line each:
//
//	<RFC3339Nano timestamp>\t<operation>\t<detail>\r\n
//
// Handler is a slog.Handler, so callers log through a *slog.Logger and pass
// the operation name as the "op" attribute.
package logsink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// OpKey is the attribute that names the failed operation.
const OpKey = "op"

// Handler formats records as log sink lines.
type Handler struct {
	mu    *sync.Mutex
	w     io.Writer
	now   func() time.Time
	level slog.Leveler
	op    string
	attrs []slog.Attr
	group string
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithLevel sets the minimum level written. The default is slog.LevelError.
func WithLevel(l slog.Leveler) Option {
	return func(h *Handler) { h.level = l }
}

// NewHandler returns a handler writing to w.
func NewHandler(w io.Writer, opts ...Option) *Handler {
	h := &Handler{mu: new(sync.Mutex), w: w, now: time.Now, level: slog.LevelError}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// New is shorthand for slog.New(NewHandler(w, opts...)).
func New(w io.Writer, opts ...Option) *slog.Logger {
	return slog.New(NewHandler(w, opts...))
}

// OpenFile opens path for appending, creating it if needed.
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log sink: %w", err)
	}
	return f, nil
}

func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

// Handle writes r as one line. The "op" attribute becomes the operation
// column; the message and remaining attributes form the detail.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	op := h.op
	var detail strings.Builder
	detail.WriteString(r.Message)

	write := func(a slog.Attr, group string) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		if a.Key == OpKey && group == "" {
			op = a.Value.String()
			return
		}
		key := a.Key
		if group != "" {
			key = group + "." + key
		}
		fmt.Fprintf(&detail, " %s=%s", key, a.Value.String())
	}
	// Attributes from WithAttrs carry their group in the key already.
	for _, a := range h.attrs {
		write(a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a, h.group)
		return true
	})
	if op == "" {
		op = "-"
	}

	ts := r.Time
	if ts.IsZero() {
		ts = h.now()
	}
	line := ts.UTC().Format(time.RFC3339Nano) + "\t" + clean(op) + "\t" + clean(detail.String()) + "\r\n"

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line)
	return err
}

// clean keeps a column on one line and free of separators.
func clean(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\r', '\n':
			return ' '
		}
		return r
	}, s)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if a.Key == OpKey && h.group == "" {
			h2.op = a.Value.String()
			continue
		}
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	h2.group = name
	return &h2
}
