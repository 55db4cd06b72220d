package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/advect/internal/engine"
	"github.com/roach88/advect/internal/ir"
)

// ReadRun returns the header of run id, or ErrRunNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, fingerprint, ranks, pattern, partition, config
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	return run, nil
}

// ListRuns returns every run ordered by id.
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, fingerprint, ranks, pattern, partition, config
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadCurves returns the terminated curves of a run ordered by rank,
// then curve id.
func (s *Store) ReadCurves(ctx context.Context, runID string) ([]CurveRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rank, domain, time_step, x, y, z, t, steps, reason
		FROM curves
		WHERE run_id = ?
		ORDER BY rank ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query curves: %w", err)
	}
	defer rows.Close()

	curves := []CurveRecord{}
	for rows.Next() {
		var (
			rec CurveRecord
			id  int64
			c   = &rec.Curve
		)
		err := rows.Scan(
			&id,
			&rec.Rank,
			&c.Domain.Domain,
			&c.Domain.TimeStep,
			&c.State.Pos[0],
			&c.State.Pos[1],
			&c.State.Pos[2],
			&c.State.Time,
			&c.StepCount,
			&c.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan curve: %w", err)
		}
		c.ID = ir.CurveID(id)
		c.Status = ir.StatusTerminated
		curves = append(curves, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate curves: %w", err)
	}
	return curves, nil
}

// ReadRankStats returns the statistics of a run ordered by rank.
func (s *Store) ReadRankStats(ctx context.Context, runID string) ([]engine.Stats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stats FROM rank_stats WHERE run_id = ? ORDER BY rank ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rank stats: %w", err)
	}
	defer rows.Close()

	stats := []engine.Stats{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan rank stats: %w", err)
		}
		st, err := unmarshalStats(text)
		if err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rank stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	err := row.Scan(
		&run.ID,
		&run.Name,
		&run.Fingerprint,
		&run.Ranks,
		&run.Pattern,
		&run.Partition,
		&run.Config,
	)
	return run, err
}
