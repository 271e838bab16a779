package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/managed"
	"github.com/roach88/objgraph/internal/memstore"
	"github.com/roach88/objgraph/internal/queryir"
	"github.com/roach88/objgraph/internal/schema"
	"github.com/roach88/objgraph/internal/testutil"
)

// StepTimeout bounds how long a step may wait for its queued work.
var StepTimeout = 5 * time.Second

// Harness runs one scenario against a fresh context tree.
type Harness struct {
	mem      *memstore.Store
	root     *managed.Context
	contexts map[string]*managed.Context
	logs     *testutil.LogBuffer
	logger   *slog.Logger

	ids    map[string]ir.ObjectID // label -> id
	labels map[ir.ObjectID]string // id -> label
}

// Run executes a scenario and returns the result.
//
// Each scenario gets its own in-memory store and sequential object ids, so
// traces are identical across runs. Execution errors (a model that does not
// compile, a step that never completes) are returned as errors; unmet
// expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	reg, err := compileModels(scenario.Models)
	if err != nil {
		return nil, fmt.Errorf("failed to compile models: %w", err)
	}

	h := &Harness{
		mem:      memstore.New(reg),
		contexts: map[string]*managed.Context{},
		logs:     &testutil.LogBuffer{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:      map[string]ir.ObjectID{},
		labels:   map[ir.ObjectID]string{},
	}
	h.root = managed.NewRoot(reg, h.mem,
		managed.WithIDs(testutil.NewIDSequence("obj").Next),
		managed.WithLogger(h.logger),
		managed.WithErrorLog(h.logs.Logger()),
	)
	defer h.root.Close()

	h.contexts["root"] = h.root
	for _, decl := range scenario.Contexts {
		h.contexts[decl.Name] = h.contexts[decl.Parent].SubManager()
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		event, err := h.execute(step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s on %s): %w", i+1, step.Op, step.Ctx, err)
		}
		event.Seq = i + 1
		result.Trace = append(result.Trace, event)
		h.check(i+1, step, event, result)
	}

	if err := h.collectFinal(reg, result); err != nil {
		return nil, err
	}
	if scenario.Final != nil {
		h.checkFinal(scenario.Final, result)
	}
	if ops := h.logs.Ops(); ops != nil {
		result.Logged = ops
	}
	return result, nil
}

func compileModels(paths []string) (*schema.Registry, error) {
	sources := make([]schema.Source, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		sources = append(sources, schema.Source{Name: p, Data: data})
	}
	return schema.CompileSources(sources...)
}

// execute runs one step and waits for the work it queued.
func (h *Harness) execute(step Step) (TraceEvent, error) {
	c := h.contexts[step.Ctx]
	event := TraceEvent{Op: step.Op, Ctx: step.Ctx, Ref: step.Ref}

	var err error
	switch step.Op {
	case OpInsert:
		var rec *managed.Record
		rec, err = c.InsertRecord(step.Entity, step.Fields)
		if err == nil && step.As != "" {
			h.ids[step.As] = rec.ID()
			h.labels[rec.ID()] = step.As
			event.Ref = step.As
		}
	case OpUpdate:
		var rec *managed.Record
		if rec, err = c.AssignRecord(h.ids[step.Ref]); err == nil {
			done := make(chan error, 1)
			c.Update(rec, step.Fields, func(e error) { done <- e })
			err = h.await(done)
		}
	case OpDelete:
		var rec *managed.Record
		if rec, err = c.AssignRecord(h.ids[step.Ref]); err == nil {
			c.Delete(rec, nil)
			h.flush(c)
		}
	case OpSave, OpCommit:
		err = h.save(c, step)
	case OpRollback:
		c.Rollback(nil)
		h.flush(c)
	case OpReset:
		c.Reset(nil)
		h.flush(c)
	case OpUndo:
		c.Undo(nil)
		h.flush(c)
	case OpRedo:
		c.Redo(nil)
		h.flush(c)
	case OpRefresh:
		var rec *managed.Record
		if step.Ref != "" {
			rec, err = c.AssignRecord(h.ids[step.Ref])
		}
		if err == nil {
			c.Refresh(rec, nil)
			h.flush(c)
		}
	case OpFetch:
		var recs []*managed.Record
		recs, err = c.Fetch(step.Entity, h.fetchOptions(step)...)
		event.Records = make([]string, 0, len(recs))
		for _, r := range recs {
			event.Records = append(event.Records, h.label(r.ID()))
		}
	}

	if err != nil {
		if code := managed.CodeOf(err); code != "" {
			event.Outcome = string(code)
			return event, nil
		}
		return event, err
	}
	event.Outcome = "ok"
	return event, nil
}

// save runs Save or Commit. A swallowed save passes no callback, so its
// outcome is read from the future alone.
func (h *Harness) save(c *managed.Context, step Step) error {
	run := c.Save
	if step.Op == OpCommit {
		run = c.Commit
	}

	var done func(error)
	if !step.Swallow {
		done = func(error) {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), StepTimeout)
	defer cancel()
	err := run(done).Wait(ctx)
	if ctx.Err() != nil {
		return fmt.Errorf("%s did not complete: %w", step.Op, ctx.Err())
	}
	return err
}

func (h *Harness) fetchOptions(step Step) []queryir.Option {
	opts := []queryir.Option{queryir.Fault(false)}
	if len(step.Where) > 0 {
		opts = append(opts, queryir.WhereTerms(step.Where...))
	}
	for _, k := range step.Sort {
		opts = append(opts, queryir.SortBy(k.Field, k.Ascending))
	}
	if step.Limit > 0 {
		opts = append(opts, queryir.Limit(step.Limit))
	}
	if step.Offset > 0 {
		opts = append(opts, queryir.Offset(step.Offset))
	}
	if step.Distinct {
		opts = append(opts, queryir.Distinct(true))
	}
	return opts
}

func (h *Harness) await(done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-time.After(StepTimeout):
		return fmt.Errorf("step did not complete within %s", StepTimeout)
	}
}

// flush waits until the work queued on c so far has run.
func (h *Harness) flush(c *managed.Context) { c.Sync(func() {}) }

// label names an id by the insert that created it. Ids created outside the
// scenario's labels are shown as is.
func (h *Harness) label(id ir.ObjectID) string {
	if l, ok := h.labels[id]; ok {
		return l
	}
	return string(id)
}

// check compares an event against the step's expectations.
func (h *Harness) check(seq int, step Step, event TraceEvent, result *Result) {
	want := "ok"
	if step.Error != "" {
		want = step.Error
	}
	if event.Outcome != want {
		result.AddError(fmt.Sprintf("step %d (%s on %s): expected %s, got %s", seq, step.Op, step.Ctx, want, event.Outcome))
		return
	}
	if step.Op == OpFetch && step.Expect != nil && !slices.Equal(step.Expect, event.Records) {
		result.AddError(fmt.Sprintf("step %d (fetch %s on %s): expected %v, got %v", seq, step.Entity, step.Ctx, step.Expect, event.Records))
	}
}

// collectFinal reads every stored record straight from the store.
func (h *Harness) collectFinal(reg *schema.Registry, result *Result) error {
	ctx := context.Background()
	for _, entity := range reg.Names() {
		rows, err := h.mem.Fetch(ctx, queryir.FetchRequest{Entity: entity})
		if err != nil {
			return fmt.Errorf("failed to read final %s records: %w", entity, err)
		}
		for _, row := range rows {
			fields, err := ir.DecodePayload(row.Payload)
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", row.ID, err)
			}
			result.Final = append(result.Final, StoredRecord{
				Ref:    h.label(row.ID),
				Entity: row.Entity,
				Fields: fields,
			})
		}
	}
	slices.SortFunc(result.Final, func(a, b StoredRecord) int {
		switch {
		case a.Ref < b.Ref:
			return -1
		case a.Ref > b.Ref:
			return 1
		}
		return 0
	})
	return nil
}

// checkFinal requires the store to hold exactly the expected records.
func (h *Harness) checkFinal(want []FinalRecord, result *Result) {
	got := make(map[string]ir.IRObject, len(result.Final))
	for _, r := range result.Final {
		got[r.Ref] = r.Fields
	}
	for _, w := range want {
		fields, ok := got[w.Ref]
		if !ok {
			result.AddError(fmt.Sprintf("final: %s is not stored", w.Ref))
			continue
		}
		delete(got, w.Ref)
		expected, err := ir.ObjectFromGo(w.Fields)
		if err != nil {
			result.AddError(fmt.Sprintf("final: %s: %v", w.Ref, err))
			continue
		}
		if !ir.Equal(expected, fields) {
			result.AddError(fmt.Sprintf("final: %s: expected %v, got %v", w.Ref, ir.ToGo(expected), ir.ToGo(fields)))
		}
	}
	for ref := range got {
		result.AddError(fmt.Sprintf("final: unexpected stored record %s", ref))
	}
}
