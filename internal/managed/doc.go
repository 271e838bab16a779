// Package managed implements nested editing contexts over a backing store.
//
// Every Context owns a FIFO queue and runs all work on its pending records
// there, one task at a time. A child context sees its own edits layered
// over its parent's view; the root's view is the backing store. Save moves
// a context's edits into its parent and repeats the step toward the root,
// which persists them:
//
//	root := managed.NewRoot(reg, store)
//	edit := root.SubManager()
//	p, _ := managed.Insert[Person](edit, map[string]any{"name": "ada"})
//	err := edit.Save(nil).Wait(ctx)
//
// Reads (Fetch, Insert, Assign*) block until the queue ran them. Lifecycle
// operations (Save, Delete, Rollback, ...) are queued and report through an
// optional callback; they return the context, or a Future for saves.
//
// Failures surface as *Error. The generic helpers follow the absent-value
// convention: they log the error and return nil or false. The *Record
// methods (InsertRecord, FetchRecords, AssignRecord) return the error.
package managed
