package harness

import "github.com/roach88/objgraph/internal/ir"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int      `json:"seq"`
	Op      string   `json:"op"`
	Ctx     string   `json:"ctx"`
	Ref     string   `json:"ref,omitempty"`
	Outcome string   `json:"outcome"`           // "ok" or the error code
	Records []string `json:"records,omitempty"` // Fetch results as refs
}

// StoredRecord is one row left in the store after the scenario.
type StoredRecord struct {
	Ref    string         `json:"ref"`
	Entity string         `json:"entity"`
	Fields ir.IRObject `json:"fields"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step met its expectations.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors explains each unmet expectation.
	Errors []string `json:"errors,omitempty"`

	// Final is the store content after the last step, ordered by ref.
	Final []StoredRecord `json:"final"`

	// Logged lists the operation of every error-log line.
	Logged []string `json:"logged"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Final:  []StoredRecord{},
		Logged: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
