package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/objgraph/internal/config"
	"github.com/roach88/objgraph/pkg/objgraph"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	SchemaDirs []string
	Driver     string
	Dir        string
	AppID      string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the objgraph CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "objgraph",
		Short: "objgraph - managed object graph store",
		Long: `Inspect and edit an objgraph store from the command line.

Every command runs through a managed context, so inserts are validated
against the model and saved the same way an application saves them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringSliceVar(&opts.SchemaDirs, "schema", nil, "CUE model directories (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "store driver: sqlite|pebble|postgres|memory")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "directory holding the store")
	cmd.PersistentFlags().StringVar(&opts.AppID, "app", "", "application identifier naming the store")

	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewFetchCommand(opts))
	cmd.AddCommand(NewInsertCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// loadConfig reads the config file, then lets flags override it.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if len(o.SchemaDirs) > 0 {
		cfg.SchemaDirs = o.SchemaDirs
	}
	if o.Driver != "" {
		cfg.Driver = config.Driver(o.Driver)
	}
	if o.Dir != "" {
		cfg.Dir = o.Dir
	}
	if o.AppID != "" {
		cfg.AppID = o.AppID
	}
	return cfg, cfg.Validate()
}

// openManager opens the configured store. Swallowed context errors go to
// stderr in the log sink format.
func (o *RootOptions) openManager(cmd *cobra.Command, f *OutputFormatter) (*objgraph.Manager, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, f.Fail(ErrCodeConfig, ExitCommandError, "invalid configuration", err)
	}
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	m := objgraph.New(cfg,
		objgraph.WithLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))),
		objgraph.WithErrorLog(cmd.ErrOrStderr()),
	)
	if err := m.InitErr(); err != nil {
		m.Close()
		return nil, f.Fail(ErrCodeStore, ExitCommandError, "cannot open store", err)
	}
	f.VerboseLog("opened %s store %s", cfg.Driver, cfg.Location())
	return m, nil
}
