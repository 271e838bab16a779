package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// MigrateResult lists the steps applied when the store was opened.
type MigrateResult struct {
	Driver string   `json:"driver"`
	Steps  []string `json:"steps"`
}

func (r MigrateResult) String() string {
	if len(r.Steps) == 0 {
		return fmt.Sprintf("%s store is up to date", r.Driver)
	}
	return fmt.Sprintf("%s store migrated:\n  %s", r.Driver, strings.Join(r.Steps, "\n  "))
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Open the store and bring it to the current model",
		Long: `Open the store and bring stored records to the current model.

Opening a store migrates it as the config's migration settings allow;
this command does only that and reports the steps it applied. Steps that
rewrite or drop data need migration.infer_mapping.

Example:
  objgraph migrate --config objgraph.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, cmd)
		},
	}
}

func runMigrate(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	m, err := opts.openManager(cmd, f)
	if err != nil {
		return err
	}
	defer m.Close()

	res := MigrateResult{Driver: string(m.Driver()), Steps: []string{}}
	for _, step := range m.Plan().Steps {
		res.Steps = append(res.Steps, step.String())
	}
	return f.Success(res)
}
