package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/objgraph/pkg/objgraph"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	Where    []string
	Values   []string
	Sort     []string
	Limit    int
	Offset   int
	Distinct bool
}

// RecordOutput is one fetched record.
type RecordOutput struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// FetchResult is the output of the fetch command.
type FetchResult struct {
	Entity  string         `json:"entity"`
	Records []RecordOutput `json:"records"`
}

func (r FetchResult) String() string {
	var b strings.Builder
	for _, rec := range r.Records {
		fields, _ := json.Marshal(rec.Fields)
		fmt.Fprintf(&b, "%s\t%s\n", rec.ID, fields)
	}
	fmt.Fprintf(&b, "%d %s record(s)", len(r.Records), r.Entity)
	return b.String()
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch <entity>",
		Short: "Query records of an entity",
		Long: `Query records of an entity.

Each --where names a field, optionally followed by an operator
(<, <=, =, >=, >); the --value at the same position is compared with it.
A value of null matches records without the field. Values are read as
JSON when they parse, as strings otherwise.

Example:
  objgraph fetch Person --where 'age >=' --value 18 --sort name
  objgraph fetch Person --where email --value null --sort age:desc --limit 10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "filter field with optional operator (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Values, "value", nil, "value for the --where at the same position (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Sort, "sort", nil, "sort key as field or field:desc (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of records (0 = all)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "records to skip")
	cmd.Flags().BoolVar(&opts.Distinct, "distinct", false, "collapse records with identical fields")

	return cmd
}

// fetchOptions turns the flags into fetch options.
func (o *FetchOptions) fetchOptions() ([]objgraph.FetchOption, error) {
	if len(o.Where) != len(o.Values) {
		return nil, fmt.Errorf("%d --where but %d --value", len(o.Where), len(o.Values))
	}
	terms := make([]objgraph.Term, len(o.Where))
	for i, key := range o.Where {
		terms[i] = objgraph.Term{Key: key, Value: parseValue(o.Values[i])}
	}
	opts := []objgraph.FetchOption{
		objgraph.WhereTerms(terms...),
		objgraph.Limit(o.Limit),
		objgraph.Offset(o.Offset),
		objgraph.Distinct(o.Distinct),
		objgraph.Fault(false),
	}
	for _, s := range o.Sort {
		field, asc, err := parseSort(s)
		if err != nil {
			return nil, err
		}
		opts = append(opts, objgraph.SortBy(field, asc))
	}
	return opts, nil
}

func runFetch(opts *FetchOptions, entity string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	fetchOpts, err := opts.fetchOptions()
	if err != nil {
		return f.Fail(ErrCodeArgs, ExitCommandError, "invalid query", err)
	}

	m, err := opts.openManager(cmd, f)
	if err != nil {
		return err
	}
	defer m.Close()

	recs, err := m.Main().Fetch(entity, fetchOpts...)
	if err != nil {
		return f.Fail(ErrCodeGeneric, ExitFailure, "fetch failed", err)
	}

	res := FetchResult{Entity: entity, Records: make([]RecordOutput, len(recs))}
	for i, r := range recs {
		fields, _ := objgraph.ToGo(r.Fields()).(map[string]any)
		res.Records[i] = RecordOutput{ID: string(r.ID()), Fields: fields}
	}
	f.VerboseLog("fetched %d record(s)", len(recs))
	return f.Success(res)
}
