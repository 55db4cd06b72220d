package testutil

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/roach88/advect/internal/ir"
)

// LineMesh is a one-dimensional mesh of unit-width domains along x,
// [0,1), [1,2), ..., at a single time step.
//
// It implements the engine's Mesh and Locator and records every load.
// Safe for concurrent use.
type LineMesh struct {
	domains int

	mu    sync.Mutex
	loads map[ir.DomainKey]int
	fail  map[int]bool
}

// NewLineMesh creates a mesh of n domains.
func NewLineMesh(n int) *LineMesh {
	return &LineMesh{domains: n, loads: make(map[ir.DomainKey]int), fail: make(map[int]bool)}
}

// Fail makes every later load of domain fail.
func (m *LineMesh) Fail(domain int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[domain] = true
}

// Locate maps x to its domain.
func (m *LineMesh) Locate(s ir.State) (ir.DomainKey, bool) {
	x := s.Pos[0]
	if math.IsNaN(x) || x < 0 || x >= float64(m.domains) {
		return ir.DomainKey{}, false
	}
	return ir.DomainKey{Domain: int(math.Floor(x))}, true
}

// Load returns the payload "line:<domain>".
func (m *LineMesh) Load(key ir.DomainKey) (ir.Payload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key.Domain < 0 || key.Domain >= m.domains || key.TimeStep != 0 {
		return nil, fmt.Errorf("line mesh: no domain %s", key)
	}
	if m.fail[key.Domain] {
		return nil, errors.New("line mesh: injected load failure")
	}
	m.loads[key]++
	return ir.Payload(fmt.Sprintf("line:%d", key.Domain)), nil
}

// Loads returns how many times key was loaded.
func (m *LineMesh) Loads(key ir.DomainKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads[key]
}

// LineSolver moves curves along x with constant velocity and a fixed
// step size. It reads the current domain from the payload.
type LineSolver struct {
	Velocity float64
	StepSize float64
}

// Advance implements the engine's Solver.
func (s LineSolver) Advance(st ir.State, payload ir.Payload, maxSteps int) (ir.Outcome, error) {
	var domain int
	if _, err := fmt.Sscanf(string(payload), "line:%d", &domain); err != nil {
		return ir.Outcome{}, fmt.Errorf("line solver: bad payload %q: %w", payload, err)
	}

	out := ir.Outcome{State: st}
	if s.Velocity == 0 {
		out.Status = ir.StatusTerminated
		out.Reason = ir.ReasonStagnation
		return out, nil
	}
	for out.Steps < maxSteps {
		out.State.Pos[0] += s.Velocity * s.StepSize
		out.State.Time += s.StepSize
		out.Steps++
		if int(math.Floor(out.State.Pos[0])) != domain {
			out.Status = ir.StatusExitedDomain
			return out, nil
		}
	}
	out.Status = ir.StatusOK
	return out, nil
}

// LineSeeds returns one seed per x position with ids 0..len(xs)-1.
func LineSeeds(xs ...float64) []ir.Seed {
	seeds := make([]ir.Seed, len(xs))
	for i, x := range xs {
		seeds[i] = ir.Seed{ID: ir.CurveID(i), Pos: ir.Vec3{x, 0, 0}}
	}
	return seeds
}
