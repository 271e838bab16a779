package managed

import (
	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/queryir"
)

// Object is a typed view over a Record. Embed Base to get Bind and Record.
type Object interface {
	EntityName() string
	Bind(*Record)
	Record() *Record
}

// Model constrains the type parameters of the generic helpers: *T must be
// an Object.
type Model[T any] interface {
	*T
	Object
}

// Base implements the record half of Object.
type Base struct {
	rec *Record
}

// Bind attaches the record.
func (b *Base) Bind(r *Record) { b.rec = r }

// Record returns the bound record.
func (b *Base) Record() *Record { return b.rec }

// ID returns the bound record's identifier.
func (b *Base) ID() ir.ObjectID { return b.rec.ID() }

func wrap[T any, PT Model[T]](rec *Record) *T {
	obj := PT(new(T))
	obj.Bind(rec)
	return (*T)(obj)
}

func entityOf[T any, PT Model[T]]() string {
	return PT(new(T)).EntityName()
}

// Insert creates a record of T's entity. It returns false, after logging
// why, when the entity or a value cannot be resolved.
func Insert[T any, PT Model[T]](c *Context, fields map[string]any) (*T, bool) {
	rec, err := c.InsertRecord(entityOf[T, PT](), fields)
	if err != nil {
		c.logError("insert", err)
		return nil, false
	}
	return wrap[T, PT](rec), true
}

// AssignID returns this context's instance of the record with id. It
// returns false, after logging why, when the record is not visible here or
// belongs to another entity.
func AssignID[T any, PT Model[T]](c *Context, id ir.ObjectID) (*T, bool) {
	rec, err := c.AssignRecord(id)
	if err == nil && rec.Entity() != entityOf[T, PT]() {
		err = &Error{Code: CodeResolution, Op: "assign", Entity: rec.Entity(), ID: id,
			Message: "record is not a " + entityOf[T, PT]()}
	}
	if err != nil {
		c.logError("assign", err)
		return nil, false
	}
	return wrap[T, PT](rec), true
}

// AssignObject re-resolves obj, typically owned by another context, in c.
func AssignObject[T any, PT Model[T]](c *Context, obj Object) (*T, bool) {
	if obj == nil || obj.Record() == nil {
		c.logError("assign", newError(CodeResolution, "assign", "object has no record"))
		return nil, false
	}
	return AssignID[T, PT](c, obj.Record().ID())
}

// FindOrCreate returns the records of T's entity whose fields equal fields,
// inserting one when there are none. Empty fields always insert. The fetch
// and the insert run as one task, so concurrent calls on the same context
// create at most one record.
func FindOrCreate[T any, PT Model[T]](c *Context, fields map[string]any) []*T {
	entity := entityOf[T, PT]()
	var recs []*Record
	var err error
	c.Sync(func() {
		if len(fields) > 0 {
			var req queryir.FetchRequest
			req, err = queryir.Build(entity, queryir.WhereMap(fields))
			if err != nil {
				err = &Error{Code: CodeResolution, Op: "assign", Entity: entity, Err: err}
				return
			}
			if recs, err = c.fetch(req); err != nil || len(recs) > 0 {
				return
			}
		}
		var rec *Record
		if rec, err = c.insert(entity, fields); err == nil {
			recs = []*Record{rec}
		}
	})
	if err != nil {
		c.logError("assign", err)
		return nil
	}
	out := make([]*T, len(recs))
	for i, r := range recs {
		out[i] = wrap[T, PT](r)
	}
	return out
}

// Fetch returns the records of T's entity matching opts, or nothing after
// logging why the request failed.
func Fetch[T any, PT Model[T]](c *Context, opts ...queryir.Option) []*T {
	recs, err := c.Fetch(entityOf[T, PT](), opts...)
	if err != nil {
		c.logError("fetch", err)
		return nil
	}
	out := make([]*T, len(recs))
	for i, r := range recs {
		out[i] = wrap[T, PT](r)
	}
	return out
}
