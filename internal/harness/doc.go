// Package harness runs scripted scenarios against a context tree and
// records what happened.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: save_propagation
//	description: "A child's commit is visible to its parent only"
//	models:
//	  - model.cue
//	contexts:
//	  - { name: a, parent: root }
//	  - { name: b, parent: a }
//	steps:
//	  - { op: insert, ctx: b, entity: Person, as: ada, fields: { name: ada } }
//	  - { op: commit, ctx: b }
//	  - { op: fetch, ctx: a, entity: Person, expect: [ada] }
//	  - { op: save, ctx: b, error: CONFLICT }
//	final:
//	  - { ref: ada, fields: { name: ada } }
//
// Records are named by the label their insert gave them ("as"); later steps
// refer to them with "ref". A step passes when its outcome is "ok", or the
// error code named in "error". Fetch steps may list the expected records in
// order. A save with "swallow: true" passes no callback, so its failure is
// written to the error log, which the result reports by operation.
//
// # Determinism
//
// Every run uses a fresh in-memory store and sequential object ids, and
// each step waits for the work it queued before the next starts. Snapshot
// output is canonical JSON, so golden files are stable across runs.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/save_propagation.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
