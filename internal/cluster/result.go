package cluster

import (
	"context"
	"fmt"

	"github.com/roach88/advect/internal/config"
	"github.com/roach88/advect/internal/engine"
	"github.com/roach88/advect/internal/ir"
	"github.com/roach88/advect/internal/store"
)

// RankResult is what one rank produced.
type RankResult struct {
	Rank   int          `json:"rank"`
	Curves []ir.Curve   `json:"curves"`
	Stats  engine.Stats `json:"stats"`
}

// Result is the outcome of a completed run.
type Result struct {
	RunID       string         `json:"run_id"`
	Fingerprint string         `json:"fingerprint"`
	Config      *config.Config `json:"-"`
	Ranks       []RankResult   `json:"ranks"`
}

// Terminated returns the number of terminated curves across all ranks.
func (r *Result) Terminated() int {
	n := 0
	for _, rr := range r.Ranks {
		n += len(rr.Curves)
	}
	return n
}

// Records flattens the curves in rank order.
func (r *Result) Records() []store.CurveRecord {
	var out []store.CurveRecord
	for _, rr := range r.Ranks {
		for _, c := range rr.Curves {
			out = append(out, store.CurveRecord{Rank: rr.Rank, Curve: c})
		}
	}
	return out
}

// Stats returns the per-rank statistics in rank order.
func (r *Result) Stats() []engine.Stats {
	out := make([]engine.Stats, len(r.Ranks))
	for i, rr := range r.Ranks {
		out[i] = rr.Stats
	}
	return out
}

// Save writes the run header, curves and statistics to s.
// Every worker of a multi-process run saves its own rank under the
// shared run id.
func (r *Result) Save(ctx context.Context, s *store.Store) error {
	cfgJSON, err := r.Config.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	run := store.Run{
		ID:          r.RunID,
		Name:        r.Config.Name,
		Fingerprint: r.Fingerprint,
		Ranks:       r.Config.Ranks,
		Pattern:     r.Config.Pattern,
		Partition:   r.Config.Partition,
		Config:      cfgJSON,
	}
	if err := s.WriteRun(ctx, run); err != nil {
		return err
	}
	if err := s.WriteCurves(ctx, r.RunID, r.Records()); err != nil {
		return err
	}
	return s.WriteRankStats(ctx, r.RunID, r.Stats())
}
