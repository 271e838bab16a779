package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/objgraph/internal/ir"
)

// Snapshot renders a result as canonical JSON for golden comparison.
// Keys are sorted and every fetch event carries its records, even when
// empty, so a fetch that found nothing is visible in the diff.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make(ir.IRArray, len(result.Trace))
	for i, e := range result.Trace {
		event := ir.IRObject{
			"seq":     ir.IRInt(e.Seq),
			"op":      ir.IRString(e.Op),
			"ctx":     ir.IRString(e.Ctx),
			"outcome": ir.IRString(e.Outcome),
		}
		if e.Ref != "" {
			event["ref"] = ir.IRString(e.Ref)
		}
		if e.Op == OpFetch {
			event["records"] = stringArray(e.Records)
		}
		trace[i] = event
	}

	final := make(ir.IRArray, len(result.Final))
	for i, r := range result.Final {
		final[i] = ir.IRObject{
			"ref":    ir.IRString(r.Ref),
			"entity": ir.IRString(r.Entity),
			"fields": r.Fields,
		}
	}

	return ir.MarshalCanonical(ir.IRObject{
		"name":   ir.IRString(name),
		"trace":  trace,
		"final":  final,
		"logged": stringArray(result.Logged),
	})
}

func stringArray(ss []string) ir.IRArray {
	arr := make(ir.IRArray, len(ss))
	for i, s := range ss {
		arr[i] = ir.IRString(s)
	}
	return arr
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
