package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/schema"
)

// SchemaSummary is the compiled model as the schema command reports it.
type SchemaSummary struct {
	Hash     string          `json:"hash"`
	Entities []ir.EntitySpec `json:"entities"`
}

func (s SchemaSummary) String() string {
	var b strings.Builder
	for _, e := range s.Entities {
		fmt.Fprintln(&b, e.Name)
		for _, f := range e.Fields {
			name := f.Name
			if f.Optional {
				name += "?"
			}
			fmt.Fprintf(&b, "  %-16s %s", name, f.Type)
			if f.RenamedFrom != "" {
				fmt.Fprintf(&b, "  (was %s)", f.RenamedFrom)
			}
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "model %s", s.Hash)
	return b.String()
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [model-dir...]",
		Short: "Compile the CUE model and print its entities",
		Long: `Compile the CUE model and print its entities.

Directories given as arguments are unified into one model; without
arguments the --schema flag or the config's schema_dirs are used.

Example:
  objgraph schema ./models
  objgraph schema ./models ./extra --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, args, cmd)
		},
	}
}

func runSchema(opts *RootOptions, dirs []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if len(dirs) == 0 {
		cfg, err := opts.loadConfig()
		if err != nil {
			return f.Fail(ErrCodeConfig, ExitCommandError, "invalid configuration", err)
		}
		dirs = cfg.SchemaDirs
	}
	if len(dirs) == 0 {
		return f.Fail(ErrCodeArgs, ExitCommandError, "no model", fmt.Errorf("pass model directories or set schema_dirs"))
	}

	f.VerboseLog("loading model from %s", strings.Join(dirs, ", "))
	reg, err := schema.LoadDirs(dirs...)
	if err != nil {
		return f.Fail(ErrCodeModel, ExitFailure, "model does not compile", err)
	}
	return f.Success(SchemaSummary{Hash: reg.Hash(), Entities: reg.Entities()})
}
