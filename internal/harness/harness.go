package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/advect/internal/channel"
	"github.com/roach88/advect/internal/cluster"
	"github.com/roach88/advect/internal/testutil"
)

// Run executes a scenario under the lock-step scheduler and evaluates its
// assertions.
//
// A run that fails (liveness limit, protocol or invariant error) is a
// failed result, not an error. Errors are returned only when the
// scenario cannot be built.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return RunWithLogger(ctx, scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine logs sent to logger.
func RunWithLogger(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Result, error) {
	trace := channel.NewTrace()
	opts := []cluster.Option{
		cluster.WithLogger(logger),
		cluster.WithIDGenerator(testutil.NewFixedRunID(scenario.RunID)),
		cluster.WithTrace(trace),
	}
	if scenario.Faults != nil {
		opts = append(opts, cluster.WithFaults(scenario.Faults.faults()))
	}

	cfg := scenario.Config
	c, err := cluster.Build(&cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	run, runErr := c.RunLockstep(ctx, scenario.maxRounds())
	result.Trace = traceEvents(trace.Entries())
	for _, e := range c.Engines() {
		result.Phases = append(result.Phases, e.Phase())
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			return nil, runErr
		}
		result.AddError(fmt.Sprintf("run failed: %v", runErr))
		// Trace assertions still explain a liveness failure.
		if !errors.Is(runErr, cluster.ErrLiveness) {
			return result, nil
		}
	}
	result.Run = run

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}
