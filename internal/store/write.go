package store

import (
	"context"
	"fmt"

	"github.com/roach88/advect/internal/engine"
)

// WriteRun inserts the run header. Writing the same id twice is a no-op.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, name, fingerprint, ranks, pattern, partition, config)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Name,
		run.Fingerprint,
		run.Ranks,
		run.Pattern,
		run.Partition,
		run.Config,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteCurves inserts terminated curves in one transaction.
// The run must already exist.
func (s *Store) WriteCurves(ctx context.Context, runID string, curves []CurveRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write curves: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO curves (run_id, id, rank, domain, time_step, x, y, z, t, steps, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write curves: %w", err)
	}
	defer stmt.Close()

	for _, rec := range curves {
		c := rec.Curve
		_, err = stmt.ExecContext(ctx,
			runID,
			int64(c.ID),
			rec.Rank,
			c.Domain.Domain,
			c.Domain.TimeStep,
			c.State.Pos[0],
			c.State.Pos[1],
			c.State.Pos[2],
			c.State.Time,
			c.StepCount,
			c.Reason,
		)
		if err != nil {
			return fmt.Errorf("write curve %d: %w", c.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("write curves: commit: %w", err)
	}
	return nil
}

// WriteRankStats inserts or replaces the statistics of each rank.
func (s *Store) WriteRankStats(ctx context.Context, runID string, stats []engine.Stats) error {
	for _, st := range stats {
		text, err := marshalStats(st)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO rank_stats (run_id, rank, stats) VALUES (?, ?, ?)
			ON CONFLICT(run_id, rank) DO UPDATE SET stats = excluded.stats
		`, runID, st.Rank, text)
		if err != nil {
			return fmt.Errorf("write rank stats %d: %w", st.Rank, err)
		}
	}
	return nil
}
