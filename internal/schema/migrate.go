package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/objgraph/internal/ir"
)

// StepKind names one change between two model versions.
type StepKind string

const (
	StepAddEntity   StepKind = "add_entity"
	StepDropEntity  StepKind = "drop_entity"
	StepAddField    StepKind = "add_field"
	StepDropField   StepKind = "drop_field"
	StepRenameField StepKind = "rename_field"
	StepRetypeField StepKind = "retype_field"
)

// Step is one change in a migration plan.
type Step struct {
	Kind   StepKind     `json:"kind"`
	Entity string       `json:"entity"`
	Field  string       `json:"field,omitempty"`
	From   string       `json:"from,omitempty"` // Previous field name for renames
	Type   ir.FieldType `json:"type,omitempty"`
}

func (s Step) String() string {
	switch s.Kind {
	case StepAddEntity, StepDropEntity:
		return fmt.Sprintf("%s %s", s.Kind, s.Entity)
	case StepRenameField:
		return fmt.Sprintf("%s %s.%s -> %s", s.Kind, s.Entity, s.From, s.Field)
	default:
		return fmt.Sprintf("%s %s.%s", s.Kind, s.Entity, s.Field)
	}
}

// Additive reports whether existing rows stay valid without rewriting.
func (s Step) Additive() bool {
	return s.Kind == StepAddEntity || (s.Kind == StepAddField && s.Type != "")
}

// Plan lists the steps that take stored rows from one model to another.
type Plan struct {
	From  string `json:"from"` // Schema hash of the stored model
	To    string `json:"to"`
	Steps []Step `json:"steps"`
}

// Empty reports whether the models are identical.
func (p Plan) Empty() bool { return len(p.Steps) == 0 }

// NeedsMapping reports whether any step rewrites or drops stored data.
func (p Plan) NeedsMapping() bool {
	for _, s := range p.Steps {
		if !s.Additive() {
			return true
		}
	}
	return false
}

func (p Plan) String() string {
	if p.Empty() {
		return "no changes"
	}
	lines := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		lines[i] = s.String()
	}
	return strings.Join(lines, "\n")
}

// Diff computes the plan that migrates rows written under old to next.
// A nil old means an empty store, which needs no steps.
func Diff(old, next *Registry) Plan {
	plan := Plan{From: old.Hash(), To: next.Hash()}
	if old == nil || old.Hash() == next.Hash() {
		return Plan{From: plan.From, To: plan.To}
	}

	for _, name := range old.Names() {
		if _, ok := next.Lookup(name); !ok {
			plan.Steps = append(plan.Steps, Step{Kind: StepDropEntity, Entity: name})
		}
	}
	for _, name := range next.Names() {
		spec, _ := next.Lookup(name)
		prev, ok := old.Lookup(name)
		if !ok {
			plan.Steps = append(plan.Steps, Step{Kind: StepAddEntity, Entity: name})
			continue
		}
		plan.Steps = append(plan.Steps, diffEntity(prev, spec)...)
	}
	return plan
}

func diffEntity(prev, next ir.EntitySpec) []Step {
	var steps []Step
	renamedAway := make(map[string]bool)

	for _, f := range next.Fields {
		old, ok := prev.Field(f.Name)
		switch {
		case ok && old.Type != f.Type:
			steps = append(steps, Step{Kind: StepRetypeField, Entity: next.Name, Field: f.Name, Type: f.Type})
		case ok && old.Optional && !f.Optional:
			// Existing rows may lack the value; treat like a fresh field.
			steps = append(steps, Step{Kind: StepAddField, Entity: next.Name, Field: f.Name})
		case !ok && f.RenamedFrom != "":
			if from, had := prev.Field(f.RenamedFrom); had && from.Type == f.Type {
				renamedAway[f.RenamedFrom] = true
				steps = append(steps, Step{Kind: StepRenameField, Entity: next.Name, Field: f.Name, From: f.RenamedFrom})
				continue
			}
			steps = append(steps, addFieldStep(next.Name, f))
		case !ok:
			steps = append(steps, addFieldStep(next.Name, f))
		}
	}
	for _, f := range prev.Fields {
		if _, ok := next.Field(f.Name); ok || renamedAway[f.Name] {
			continue
		}
		steps = append(steps, Step{Kind: StepDropField, Entity: next.Name, Field: f.Name})
	}
	return steps
}

// addFieldStep marks optional additions as additive by carrying the type.
// A required addition leaves Type empty: existing rows would fail
// validation, so the step needs mapping.
func addFieldStep(entity string, f ir.FieldSpec) Step {
	s := Step{Kind: StepAddField, Entity: entity, Field: f.Name}
	if f.Optional {
		s.Type = f.Type
	}
	return s
}

// Options mirror the automatic lightweight migration switches.
type Options struct {
	Automatic    bool // Apply plans when the stored model differs
	InferMapping bool // Allow plans that rewrite or drop stored data
}

// Check reports whether opts allow applying plan.
func (p Plan) Check(opts Options) error {
	if p.Empty() {
		return nil
	}
	if !opts.Automatic {
		return fmt.Errorf("stored model %s differs from %s and automatic migration is disabled", short(p.From), short(p.To))
	}
	if p.NeedsMapping() && !opts.InferMapping {
		return fmt.Errorf("migration requires mapping inference:\n%s", p)
	}
	return nil
}

// Rewrite applies the plan to one stored row. keep is false when the row's
// entity was dropped. Dropped fields are removed, renamed fields move, and
// values whose type changed are cleared.
func (p Plan) Rewrite(row ir.Row) (out ir.Row, keep bool, err error) {
	var touched bool
	for _, s := range p.Steps {
		if s.Entity != row.Entity {
			continue
		}
		if s.Kind == StepDropEntity {
			return row, false, nil
		}
		if s.Kind == StepDropField || s.Kind == StepRenameField || s.Kind == StepRetypeField {
			touched = true
		}
	}
	if !touched {
		return row, true, nil
	}

	fields, err := ir.DecodePayload(row.Payload)
	if err != nil {
		return row, false, fmt.Errorf("row %s: %w", row.ID, err)
	}
	for _, s := range p.Steps {
		if s.Entity != row.Entity {
			continue
		}
		switch s.Kind {
		case StepDropField, StepRetypeField:
			delete(fields, s.Field)
		case StepRenameField:
			if v, ok := fields[s.From]; ok {
				fields[s.Field] = v
				delete(fields, s.From)
			}
		}
	}
	payload, err := ir.EncodePayload(fields)
	if err != nil {
		return row, false, fmt.Errorf("row %s: %w", row.ID, err)
	}
	row.Payload = payload
	return row, true, nil
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	if hash == "" {
		return "(none)"
	}
	return hash
}
