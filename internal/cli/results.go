package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/advect/internal/engine"
	"github.com/roach88/advect/internal/store"
)

// ResultsOptions holds flags for the results command.
type ResultsOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// RunList is the output of results without --run.
type RunList struct {
	Runs []store.Run `json:"runs"`
}

// Text renders the list for humans.
func (l RunList) Text(w io.Writer) {
	if len(l.Runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}
	for _, r := range l.Runs {
		name := r.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s  %-20s ranks=%d %s/%s  %s\n", r.ID, name, r.Ranks, r.Pattern, r.Partition, r.Fingerprint[:min(16, len(r.Fingerprint))])
	}
}

// RunDetail is the output of results --run.
type RunDetail struct {
	Run    store.Run           `json:"run"`
	Curves []store.CurveRecord `json:"curves"`
	Stats  []engine.Stats      `json:"stats"`
}

// Text renders the run for humans.
func (d RunDetail) Text(w io.Writer) {
	fmt.Fprintf(w, "run %s (%d ranks, %s, %s)\n", d.Run.ID, d.Run.Ranks, d.Run.Pattern, d.Run.Partition)
	fmt.Fprintf(w, "  fingerprint: %s\n", d.Run.Fingerprint)
	fmt.Fprintf(w, "  curves:      %d\n", len(d.Curves))
	for _, rec := range d.Curves {
		c := rec.Curve
		fmt.Fprintf(w, "    %4d rank=%d domain=%s pos=(%g, %g, %g) t=%g steps=%d %s\n",
			c.ID, rec.Rank, c.Domain, c.State.Pos[0], c.State.Pos[1], c.State.Pos[2], c.State.Time, c.StepCount, c.Reason)
	}
	for _, st := range d.Stats {
		fmt.Fprintf(w, "  rank %d: seeded=%d steps=%d terminated=%d requests=%d served=%d\n",
			st.Rank, st.Seeded, st.Steps, st.Terminated, st.RequestsSent, st.RequestsServed)
	}
}

// NewResultsCommand creates the results command.
func NewResultsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResultsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show saved runs",
		Long: `List the runs saved in a results database, or show one run's
terminated curves and per-rank statistics.

Example:
  advect results --db ./runs.db
  advect results --db ./runs.db --run 0190a5c4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResults(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show this run")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runResults(opts *ResultsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// store.Open would create a missing database.
	if _, err := os.Stat(opts.Database); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("database not found: %s", opts.Database), nil)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to list runs", err)
		}
		return formatter.Success(RunList{Runs: runs})
	}

	detail, err := readRunDetail(ctx, st, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeRunNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to read run", err)
	}
	return formatter.Success(detail)
}

func readRunDetail(ctx context.Context, st *store.Store, id string) (RunDetail, error) {
	run, err := st.ReadRun(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}
	curves, err := st.ReadCurves(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}
	stats, err := st.ReadRankStats(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}
	return RunDetail{Run: run, Curves: curves, Stats: stats}, nil
}
