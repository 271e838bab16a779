package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/objgraph/internal/queryir"
)

// Scenario describes a context tree and the steps run against it.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Models lists CUE files unified into the model. Paths are relative to
	// the scenario file.
	Models []string `yaml:"models"`

	// Contexts declares named contexts in creation order. "root" exists
	// implicitly.
	Contexts []ContextDecl `yaml:"contexts,omitempty"`

	// Steps run in order, each waiting for the previous one.
	Steps []Step `yaml:"steps"`

	// Final, when set, is the exact expected store content.
	Final []FinalRecord `yaml:"final,omitempty"`
}

// ContextDecl names a context and its parent.
type ContextDecl struct {
	Name   string `yaml:"name"`
	Parent string `yaml:"parent"`
}

// Step operations.
const (
	OpInsert   = "insert"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpSave     = "save"
	OpCommit   = "commit"
	OpRollback = "rollback"
	OpReset    = "reset"
	OpRefresh  = "refresh"
	OpUndo     = "undo"
	OpRedo     = "redo"
	OpFetch    = "fetch"
)

var knownOps = []string{OpInsert, OpUpdate, OpDelete, OpSave, OpCommit, OpRollback, OpReset, OpRefresh, OpUndo, OpRedo, OpFetch}

// Step is one operation on a context.
type Step struct {
	Op  string `yaml:"op"`
	Ctx string `yaml:"ctx"`

	// Entity is the entity inserted or fetched.
	Entity string `yaml:"entity,omitempty"`

	// As labels the record an insert creates; later steps name it in Ref.
	As  string `yaml:"as,omitempty"`
	Ref string `yaml:"ref,omitempty"`

	Fields map[string]any `yaml:"fields,omitempty"`

	// Fetch parameters.
	Where    []queryir.Term    `yaml:"where,omitempty"`
	Sort     []queryir.SortKey `yaml:"sort,omitempty"`
	Limit    int               `yaml:"limit,omitempty"`
	Offset   int               `yaml:"offset,omitempty"`
	Distinct bool              `yaml:"distinct,omitempty"`

	// Expect is the fetch result as refs, in order. Unset skips the check.
	Expect []string `yaml:"expect,omitempty"`

	// Error is the expected error code; empty expects success.
	Error string `yaml:"error,omitempty"`

	// Swallow saves without a callback so failures go to the error log.
	Swallow bool `yaml:"swallow,omitempty"`
}

// FinalRecord is one expected stored record.
type FinalRecord struct {
	Ref    string         `yaml:"ref"`
	Fields map[string]any `yaml:"fields"`
}

// LoadScenario reads and parses a scenario YAML file, resolving model
// paths against its directory. Unknown fields are rejected so typos fail
// loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	for i, m := range s.Models {
		if !filepath.IsAbs(m) {
			s.Models[i] = filepath.Join(base, m)
		}
	}
	for _, m := range s.Models {
		if _, err := os.Stat(m); err != nil {
			return nil, fmt.Errorf("invalid scenario: model file not found: %s", m)
		}
	}
	return s, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// step names a declared context.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Models) == 0 {
		return fmt.Errorf("models list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	declared := map[string]bool{"root": true}
	for i, c := range s.Contexts {
		switch {
		case c.Name == "":
			return fmt.Errorf("contexts[%d]: name is required", i)
		case declared[c.Name]:
			return fmt.Errorf("contexts[%d]: %q declared twice", i, c.Name)
		case !declared[c.Parent]:
			return fmt.Errorf("contexts[%d]: parent %q is not declared before it", i, c.Parent)
		}
		declared[c.Name] = true
	}

	labels := map[string]bool{}
	for i, step := range s.Steps {
		if !slices.Contains(knownOps, step.Op) {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if !declared[step.Ctx] {
			return fmt.Errorf("steps[%d]: unknown context %q", i, step.Ctx)
		}
		switch step.Op {
		case OpInsert, OpFetch:
			if step.Entity == "" {
				return fmt.Errorf("steps[%d]: entity is required for %s", i, step.Op)
			}
		case OpUpdate, OpDelete:
			if step.Ref == "" {
				return fmt.Errorf("steps[%d]: ref is required for %s", i, step.Op)
			}
		}
		if step.Ref != "" && !labels[step.Ref] {
			return fmt.Errorf("steps[%d]: ref %q is not labelled by an earlier insert", i, step.Ref)
		}
		if step.As != "" {
			labels[step.As] = true
		}
	}
	return nil
}
