package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/advect/internal/ir"
)

// createTestStore opens a store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestRun(id string) Run {
	return Run{
		ID:          id,
		Name:        "test",
		Fingerprint: "test-fingerprint",
		Ranks:       2,
		Pattern:     "on-demand",
		Partition:   "block",
		Config:      `{"ranks":2}`,
	}
}

func createTestCurve(rank int, id ir.CurveID, x float64) CurveRecord {
	return CurveRecord{
		Rank: rank,
		Curve: ir.Curve{
			ID:        id,
			Domain:    ir.DomainKey{Domain: int(x)},
			State:     ir.State{Pos: ir.Vec3{x, 0.5, 0.5}, Time: 1.5},
			StepCount: 7,
			Status:    ir.StatusTerminated,
			Reason:    ir.ReasonMaxSteps,
		},
	}
}
