package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/advect/internal/ir"
)

func TestLineMesh_Locate(t *testing.T) {
	m := NewLineMesh(3)

	tests := []struct {
		x      float64
		want   int
		inside bool
	}{
		{0, 0, true},
		{0.99, 0, true},
		{1, 1, true},
		{2.5, 2, true},
		{3, 0, false},
		{-0.1, 0, false},
		{math.NaN(), 0, false},
	}
	for _, tt := range tests {
		key, inside := m.Locate(ir.State{Pos: ir.Vec3{tt.x, 0, 0}})
		assert.Equal(t, tt.inside, inside, "x=%v", tt.x)
		if tt.inside {
			assert.Equal(t, tt.want, key.Domain, "x=%v", tt.x)
		}
	}
}

func TestLineMesh_LoadCountsAndFailures(t *testing.T) {
	m := NewLineMesh(2)
	key := ir.DomainKey{Domain: 1}

	p, err := m.Load(key)
	require.NoError(t, err)
	assert.Equal(t, ir.Payload("line:1"), p)
	assert.Equal(t, 1, m.Loads(key))

	_, err = m.Load(ir.DomainKey{Domain: 2})
	assert.Error(t, err)

	m.Fail(1)
	_, err = m.Load(key)
	assert.Error(t, err)
	assert.Equal(t, 1, m.Loads(key))
}

func TestLineSolver_ExitsDomain(t *testing.T) {
	s := LineSolver{Velocity: 1, StepSize: 0.25}
	out, err := s.Advance(ir.State{Pos: ir.Vec3{0.5, 0, 0}}, ir.Payload("line:0"), 10)
	require.NoError(t, err)

	assert.Equal(t, ir.StatusExitedDomain, out.Status)
	assert.Equal(t, 2, out.Steps)
	assert.InDelta(t, 1.0, out.State.Pos[0], 1e-12)
	assert.InDelta(t, 0.5, out.State.Time, 1e-12)
}

func TestLineSolver_BudgetAndStagnation(t *testing.T) {
	s := LineSolver{Velocity: 0.01, StepSize: 0.1}
	out, err := s.Advance(ir.State{}, ir.Payload("line:0"), 5)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusOK, out.Status)
	assert.Equal(t, 5, out.Steps)

	out, err = LineSolver{StepSize: 0.1}.Advance(ir.State{}, ir.Payload("line:0"), 5)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusTerminated, out.Status)
	assert.Equal(t, ir.ReasonStagnation, out.Reason)

	_, err = s.Advance(ir.State{}, ir.Payload("garbage"), 5)
	assert.Error(t, err)
}

func TestFixedRunID(t *testing.T) {
	assert.Equal(t, "run-1", NewFixedRunID("run-1").Generate())
	assert.Equal(t, "test-run-default", NewFixedRunID("").Generate())
}
