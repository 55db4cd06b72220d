package cluster

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/advect/internal/channel"
	"github.com/roach88/advect/internal/config"
	"github.com/roach88/advect/internal/engine"
	"github.com/roach88/advect/internal/ir"
	"github.com/roach88/advect/internal/store"
)

const lineYAML = `
name: line
ranks: %RANKS%
mesh:
  min: [0, 0, 0]
  max: [4, 1, 1]
  blocks: [4, 1, 1]
field:
  kind: uniform
  vector: [1, 0, 0]
solver:
  step_size: 0.1
  max_steps: 1000
  step_budget: 8
seeds:
  rakes:
    - from: [0.5, 0.5, 0.5]
      to: [3.5, 0.5, 0.5]
      count: 8
`

func lineConfig(t *testing.T, ranks string) *config.Config {
	t.Helper()
	src := []byte(strings.ReplaceAll(lineYAML, "%RANKS%", ranks))
	cfg, err := config.Parse(src, config.FormatYAML, "line.yaml")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuild_InvalidConfig(t *testing.T) {
	cfg := lineConfig(t, "2")
	cfg.Solver.StepSize = 0

	_, err := Build(cfg, WithLogger(quiet()))
	require.Error(t, err)
	assert.True(t, engine.IsConfigurationError(err))
}

func TestRunLockstep(t *testing.T) {
	cfg := lineConfig(t, "2")
	trace := channel.NewTrace()
	c, err := Build(cfg, WithLogger(quiet()), WithRunID("run-1"), WithTrace(trace))
	require.NoError(t, err)
	require.Len(t, c.Engines(), 2)

	res, err := c.RunLockstep(context.Background(), 10_000)
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, c.Fingerprint(), res.Fingerprint)
	assert.Equal(t, 8, res.Terminated())
	for _, rec := range res.Records() {
		assert.Equal(t, ir.StatusTerminated, rec.Curve.Status)
		assert.Equal(t, ir.ReasonOutsideMesh, rec.Curve.Reason)
		assert.GreaterOrEqual(t, rec.Curve.State.Pos[0], 4.0)
	}

	// Every rank announces to every rank exactly once.
	done := trace.Count(func(e channel.TraceEntry) bool { return e.Kind == ir.KindDone })
	assert.Equal(t, 4, done)
	for _, st := range res.Stats() {
		assert.Equal(t, 4, st.Seeded)
		assert.Equal(t, 2, st.DoneReceived)
	}
}

func TestRun_MatchesLockstep(t *testing.T) {
	lock, err := Build(lineConfig(t, "3"), WithLogger(quiet()), WithRunID("a"))
	require.NoError(t, err)
	want, err := lock.RunLockstep(context.Background(), 10_000)
	require.NoError(t, err)

	conc, err := Build(lineConfig(t, "3"), WithLogger(quiet()), WithRunID("b"))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	got, err := conc.Run(ctx)
	require.NoError(t, err)

	if diff := cmp.Diff(want.Records(), got.Records()); diff != "" {
		t.Errorf("curves differ (-lockstep +concurrent):\n%s", diff)
	}
}

func TestRunLockstep_Liveness(t *testing.T) {
	c, err := Build(lineConfig(t, "2"), WithLogger(quiet()), WithRunID("r"))
	require.NoError(t, err)

	_, err = c.RunLockstep(context.Background(), 1)
	assert.ErrorIs(t, err, ErrLiveness)
}

func TestBuild_Faults(t *testing.T) {
	cfg := lineConfig(t, "3")
	cfg.Channel.Encode = true
	c, err := Build(cfg, WithLogger(quiet()), WithRunID("r"),
		WithFaults(channel.Faults{Seed: 7, Duplicate: 0.5, Reorder: true}))
	require.NoError(t, err)

	res, err := c.RunLockstep(context.Background(), 10_000)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Terminated())
}

func TestBuild_IDGenerator(t *testing.T) {
	gen := NewFixedGenerator("first", "second")
	c1, err := Build(lineConfig(t, "1"), WithLogger(quiet()), WithIDGenerator(gen))
	require.NoError(t, err)
	c2, err := Build(lineConfig(t, "1"), WithLogger(quiet()), WithIDGenerator(gen))
	require.NoError(t, err)

	assert.Equal(t, "first", c1.RunID())
	assert.Equal(t, "second", c2.RunID())
	assert.Panics(t, func() { gen.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "v7 ids sort by creation")
}

func TestBuild_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := Build(lineConfig(t, "2"), WithLogger(quiet()), WithRunID("r"), WithRegisterer(reg))
	require.NoError(t, err)
	_, err = c.RunLockstep(context.Background(), 10_000)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["advect_curves_terminated_total"])
	assert.True(t, names["advect_messages_sent_total"])
	assert.True(t, names["advect_phase"])
}

func TestResult_Save(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()

	c, err := Build(lineConfig(t, "2"), WithLogger(quiet()), WithRunID("saved"))
	require.NoError(t, err)
	res, err := c.RunLockstep(ctx, 10_000)
	require.NoError(t, err)
	require.NoError(t, res.Save(ctx, s))

	run, err := s.ReadRun(ctx, "saved")
	require.NoError(t, err)
	assert.Equal(t, "line", run.Name)
	assert.Equal(t, res.Fingerprint, run.Fingerprint)
	assert.Equal(t, 2, run.Ranks)

	curves, err := s.ReadCurves(ctx, "saved")
	require.NoError(t, err)
	if diff := cmp.Diff(res.Records(), curves); diff != "" {
		t.Errorf("stored curves differ (-result +stored):\n%s", diff)
	}

	stats, err := s.ReadRankStats(ctx, "saved")
	require.NoError(t, err)
	assert.Equal(t, res.Stats(), stats)
}

func TestWorker_OverHub(t *testing.T) {
	cfg := lineConfig(t, "2")
	hub, err := channel.NewHub(2)
	require.NoError(t, err)

	workers := make([]*Worker, 2)
	for r := range workers {
		workers[r], err = NewWorker(cfg, r, hub.Endpoint(r), WithLogger(quiet()))
		require.NoError(t, err)
	}
	assert.Equal(t, workers[0].RunID(), workers[1].RunID(), "workers derive the same run id")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results := runWorkers(ctx, t, workers)
	total := 0
	for _, res := range results {
		total += res.Terminated()
	}
	assert.Equal(t, 8, total)
}

func TestNewWorker_RankMismatch(t *testing.T) {
	cfg := lineConfig(t, "2")
	hub, err := channel.NewHub(2)
	require.NoError(t, err)

	_, err = NewWorker(cfg, 0, hub.Endpoint(1), WithLogger(quiet()))
	assert.True(t, engine.IsConfigurationError(err))

	_, err = NewWorker(cfg, 5, hub.Endpoint(1), WithLogger(quiet()))
	assert.True(t, engine.IsConfigurationError(err))
}

func TestDialWorker_TCP(t *testing.T) {
	cfg := lineConfig(t, "2")
	addrs := make([]string, 2)
	for i := range addrs {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addrs[i] = ln.Addr().String()
		require.NoError(t, ln.Close())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	workers := make([]*Worker, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for r := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workers[r], errs[r] = DialWorker(ctx, cfg, r, addrs, WithLogger(quiet()), WithRunID("tcp"))
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	results := runWorkers(ctx, t, workers)
	assert.Equal(t, 8, results[0].Terminated()+results[1].Terminated())
	assert.Equal(t, "tcp", results[0].RunID)
}

func runWorkers(ctx context.Context, t *testing.T, workers []*Worker) []*Result {
	t.Helper()
	results := make([]*Result, len(workers))
	errs := make([]error, len(workers))
	var wg sync.WaitGroup
	for i, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = w.Run(ctx)
		}()
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}
	return results
}
