package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// InsertResult reports the saved record.
type InsertResult struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
}

func (r InsertResult) String() string {
	return fmt.Sprintf("inserted %s %s", r.Entity, r.ID)
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <entity> <field=value>...",
		Short: "Insert a record and save it",
		Long: `Insert a record and save it to the store.

The record is created in a fresh context, validated against the model
and saved through the root like any application save. Values are read
as JSON when they parse, as strings otherwise.

Example:
  objgraph insert Person name=ada age=36
  objgraph insert Person name=bob 'tags=["a","b"]' --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInsert(rootOpts, args[0], args[1:], cmd)
		},
	}
}

func runInsert(opts *RootOptions, entity string, assignments []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	fields, err := parseAssignments(assignments)
	if err != nil {
		return f.Fail(ErrCodeArgs, ExitCommandError, "invalid fields", err)
	}

	m, err := opts.openManager(cmd, f)
	if err != nil {
		return err
	}
	defer m.Close()

	c := m.Main()
	rec, err := c.InsertRecord(entity, fields)
	if err != nil {
		return f.Fail(ErrCodeGeneric, ExitFailure, "insert failed", err)
	}
	// A non-nil callback keeps the error out of the error log; it is
	// reported here instead.
	if err := c.Save(func(error) {}).Wait(cmd.Context()); err != nil {
		return f.Fail(ErrCodeGeneric, ExitFailure, "save failed", err)
	}
	return f.Success(InsertResult{Entity: entity, ID: string(rec.ID())})
}
