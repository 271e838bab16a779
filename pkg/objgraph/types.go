package objgraph

import (
	"github.com/roach88/objgraph/internal/config"
	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/managed"
	"github.com/roach88/objgraph/internal/queryir"
	"github.com/roach88/objgraph/internal/schema"
)

type (
	Config       = config.Config
	Context      = managed.Context
	Record       = managed.Record
	Object       = managed.Object
	Base         = managed.Base
	Future       = managed.Future
	Error        = managed.Error
	ErrorCode    = managed.ErrorCode
	ObjectID     = ir.ObjectID
	Registry     = schema.Registry
	SchemaSource = schema.Source
	FetchRequest = queryir.FetchRequest
	FetchOption  = queryir.Option
	Term         = queryir.Term
)

// Error codes.
const (
	CodeResolution       = managed.CodeResolution
	CodeNotFound         = managed.CodeNotFound
	CodeValidation       = managed.CodeValidation
	CodeConflict         = managed.CodeConflict
	CodeStoreIO          = managed.CodeStoreIO
	CodeStoreUnavailable = managed.CodeStoreUnavailable
	CodeClosed           = managed.CodeClosed
)

var (
	ErrNotFound = managed.ErrNotFound
	ErrNoStore  = managed.ErrNoStore
	ErrClosed   = managed.ErrClosed
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config { return config.Default() }

// LoadConfig reads a YAML configuration with OBJGRAPH_* overrides.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// Fetch options.
var (
	Where      = queryir.Where
	WhereTerms = queryir.WhereTerms
	WhereMap   = queryir.WhereMap
	SortBy     = queryir.SortBy
	SortMap    = queryir.SortMap
	Limit      = queryir.Limit
	Offset     = queryir.Offset
	Batch      = queryir.Batch
	Fault      = queryir.Fault
	Distinct   = queryir.Distinct
)

// Insert creates a record of T's entity in c.
func Insert[T any, PT managed.Model[T]](c *Context, fields map[string]any) (*T, bool) {
	return managed.Insert[T, PT](c, fields)
}

// Fetch returns the records of T's entity matching opts as c sees them.
func Fetch[T any, PT managed.Model[T]](c *Context, opts ...FetchOption) []*T {
	return managed.Fetch[T, PT](c, opts...)
}

// FindOrCreate returns the records equal to fields, inserting one if none.
func FindOrCreate[T any, PT managed.Model[T]](c *Context, fields map[string]any) []*T {
	return managed.FindOrCreate[T, PT](c, fields)
}

// AssignID returns c's instance of the record with id.
func AssignID[T any, PT managed.Model[T]](c *Context, id ObjectID) (*T, bool) {
	return managed.AssignID[T, PT](c, id)
}

// AssignObject returns c's instance of obj.
func AssignObject[T any, PT managed.Model[T]](c *Context, obj Object) (*T, bool) {
	return managed.AssignObject[T, PT](c, obj)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode { return managed.CodeOf(err) }

// ToGo converts a field value to plain Go values.
func ToGo(v ir.IRValue) any { return ir.ToGo(v) }
