package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/advect/internal/cluster"
	"github.com/roach88/advect/internal/engine"
	"github.com/roach88/advect/internal/store"
)

// DefaultMaxRounds bounds lock-step runs started from the CLI.
const DefaultMaxRounds = 1_000_000

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database  string
	Lockstep  bool
	MaxRounds int

	// IDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator cluster.IDGenerator
}

// RunSummary is the outcome of a run as printed by run and worker.
type RunSummary struct {
	RunID       string         `json:"run_id"`
	Fingerprint string         `json:"fingerprint"`
	Ranks       int            `json:"ranks"`
	Terminated  int            `json:"terminated"`
	Reasons     map[string]int `json:"reasons"`
	Stats       []engine.Stats `json:"stats"`
	Database    string         `json:"database,omitempty"`
}

// Text renders the summary for humans.
func (s RunSummary) Text(w io.Writer) {
	fmt.Fprintf(w, "run %s (%d ranks)\n", s.RunID, s.Ranks)
	fmt.Fprintf(w, "  fingerprint: %s\n", s.Fingerprint)
	fmt.Fprintf(w, "  terminated:  %d\n", s.Terminated)

	reasons := make([]string, 0, len(s.Reasons))
	for r := range s.Reasons {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(w, "    %-28s %d\n", r, s.Reasons[r])
	}

	for _, st := range s.Stats {
		fmt.Fprintf(w, "  rank %d: seeded=%d steps=%d requests=%d served=%d loads=%d evictions=%d\n",
			st.Rank, st.Seeded, st.Steps, st.RequestsSent, st.RequestsServed, st.LocalLoads, st.Evictions)
	}
	if s.Database != "" {
		fmt.Fprintf(w, "  saved to %s\n", s.Database)
	}
}

func summarize(result *cluster.Result, database string) RunSummary {
	s := RunSummary{
		RunID:       result.RunID,
		Fingerprint: result.Fingerprint,
		Ranks:       result.Config.Ranks,
		Terminated:  result.Terminated(),
		Reasons:     make(map[string]int),
		Stats:       result.Stats(),
		Database:    database,
	}
	for _, rr := range result.Ranks {
		for _, c := range rr.Curves {
			s.Reasons[c.Reason]++
		}
	}
	return s
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Run every rank in this process",
		Long: `Run an advection with every rank in this process.

Ranks talk over an in-memory channel. By default each rank runs on its own
goroutine; --lockstep steps the ranks one iteration at a time in rank
order, which makes the message trace reproducible.

Example:
  advect run ./line.yaml
  advect run --db ./runs.db --lockstep ./line.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCluster(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for results")
	cmd.Flags().BoolVar(&opts.Lockstep, "lockstep", false, "step ranks deterministically in rank order")
	cmd.Flags().IntVar(&opts.MaxRounds, "max-rounds", DefaultMaxRounds, "lock-step round limit")

	return cmd
}

func runCluster(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, formatter.GetErrWriter())

	cfg, err := loadConfig(formatter, path)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(formatter, opts.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	gen := opts.IDGenerator
	if gen == nil {
		gen = cluster.UUIDv7Generator{}
	}
	c, err := cluster.Build(cfg, cluster.WithLogger(logger), cluster.WithIDGenerator(gen))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfigInvalid, "build failed", err)
	}

	ctx, stop := signalContext(cmd.Context(), logger)
	defer stop()

	logger.Info("run starting", "run_id", c.RunID(), "ranks", cfg.Ranks, "lockstep", opts.Lockstep)
	var result *cluster.Result
	if opts.Lockstep {
		result, err = c.RunLockstep(ctx, opts.MaxRounds)
	} else {
		result, err = c.Run(ctx)
	}
	if err != nil {
		return runFailure(formatter, err)
	}
	logger.Info("run finished", "run_id", result.RunID, "terminated", result.Terminated())

	return finish(ctx, formatter, result, st, opts.Database)
}

// finish saves result when a store is open and prints the summary.
func finish(ctx context.Context, formatter *OutputFormatter, result *cluster.Result, st *store.Store, database string) error {
	if st != nil {
		if err := result.Save(ctx, st); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to save results", err)
		}
	}
	return formatter.Success(summarize(result, database))
}

// openStore opens the results database when path is set. The returned
// close function is always safe to call.
func openStore(formatter *OutputFormatter, path string, logger *slog.Logger) (*store.Store, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	return st, func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}, nil
}

// signalContext cancels on SIGINT or SIGTERM. Use the command's context
// if available (for testing).
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// runFailure reports a failed or interrupted run.
func runFailure(formatter *OutputFormatter, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return formatter.Fail(ExitFailure, ErrCodeRunFailed, "run interrupted", err)
	}
	return formatter.Fail(ExitFailure, ErrCodeRunFailed, "run failed", err)
}
