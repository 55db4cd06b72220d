package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/advect/internal/ir"
)

func addCurve(s *curveSet, id int, domain int) handle {
	return s.add(ir.Curve{ID: ir.CurveID(id), Domain: ir.DomainKey{Domain: domain}})
}

func TestCurveSet_ActiveFIFO(t *testing.T) {
	s := newCurveSet()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.pushActive(addCurve(s, i, 0)))
	}
	assert.Equal(t, Counts{Active: 3}, s.counts())

	for i := 0; i < 3; i++ {
		h, ok, err := s.popActive()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, ir.CurveID(i), s.get(h).ID)
		require.NoError(t, s.terminate(h))
	}
	_, ok, err := s.popActive()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Counts{Terminated: 3}, s.counts())
}

func TestCurveSet_MoveFromWrongContainerFails(t *testing.T) {
	s := newCurveSet()
	h := addCurve(s, 7, 0)
	require.NoError(t, s.pushActive(h))

	err := s.pushActive(h)
	assert.True(t, IsInvariantViolation(err), "a curve cannot be queued twice")
	err = s.terminate(h)
	assert.True(t, IsInvariantViolation(err), "only the stepping curve can terminate")
	assert.Equal(t, 1, s.counts().Total())
}

func TestCurveSet_OOBReleaseByKey(t *testing.T) {
	s := newCurveSet()
	a := addCurve(s, 1, 5)
	b := addCurve(s, 2, 6)
	c := addCurve(s, 3, 5)
	for _, h := range []handle{a, b, c} {
		require.NoError(t, s.pushOOB(h))
	}
	assert.Equal(t, 3, s.counts().OOB)

	released, err := s.releaseOOB(ir.DomainKey{Domain: 5})
	require.NoError(t, err)
	assert.Equal(t, []handle{a, c}, released, "release keeps parking order")
	assert.Equal(t, Counts{OOB: 1, Stepping: 2}, s.counts())

	none, err := s.releaseOOB(ir.DomainKey{Domain: 9})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCurveSet_NextOOBPolicy(t *testing.T) {
	s := newCurveSet()
	_, _, ok := s.nextOOB()
	assert.False(t, ok)

	for _, c := range []struct{ id, domain, ts int }{
		{9, 4, 0},
		{8, 2, 1},
		{5, 2, 0},
		{3, 2, 0},
		{1, 7, 0},
	} {
		h := s.add(ir.Curve{ID: ir.CurveID(c.id), Domain: ir.DomainKey{Domain: c.domain, TimeStep: c.ts}})
		require.NoError(t, s.pushOOB(h))
	}

	h, key, ok := s.nextOOB()
	require.True(t, ok)
	assert.Equal(t, ir.DomainKey{Domain: 2, TimeStep: 0}, key)
	assert.Equal(t, ir.CurveID(3), s.get(h).ID, "lowest key first, then lowest curve id")
}

func TestCurveSet_TakeMovesOut(t *testing.T) {
	s := newCurveSet()
	h := addCurve(s, 4, 0)
	require.NoError(t, s.terminate(h))

	got := s.take()
	require.Len(t, got, 1)
	assert.Equal(t, ir.CurveID(4), got[0].ID)
	assert.Empty(t, s.take(), "a curve is taken once")
	assert.Equal(t, Counts{Taken: 1}, s.counts())
	assert.Equal(t, 1, s.counts().Total())
}
