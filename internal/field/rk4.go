package field

import (
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/advect/internal/ir"
)

// StagnationSpeed is the speed below which a curve is considered stopped.
const StagnationSpeed = 1e-12

// decodedBlocks bounds the decoded payloads an RK4 keeps.
const decodedBlocks = 256

// RK4 is a fixed-step classical Runge-Kutta solver over Block payloads.
// It is safe for concurrent use by several engines.
type RK4 struct {
	stepSize float64
	maxTime  float64

	// blocks caches decoded payloads by content hash.
	blocks *lru.Cache[uint64, *Block]
}

// NewRK4 creates a solver. maxTime of zero disables the time limit.
func NewRK4(stepSize, maxTime float64) (*RK4, error) {
	if !(stepSize > 0) || math.IsInf(stepSize, 0) {
		return nil, fmt.Errorf("rk4: step size must be positive and finite, got %v", stepSize)
	}
	if maxTime < 0 || math.IsNaN(maxTime) {
		return nil, fmt.Errorf("rk4: max time must not be negative, got %v", maxTime)
	}
	blocks, err := lru.New[uint64, *Block](decodedBlocks)
	if err != nil {
		return nil, err
	}
	return &RK4{stepSize: stepSize, maxTime: maxTime, blocks: blocks}, nil
}

func (s *RK4) block(p ir.Payload) (*Block, error) {
	if len(p) == 0 {
		return nil, errors.New("rk4: empty payload")
	}
	h := xxhash.Sum64(p)
	if b, ok := s.blocks.Get(h); ok {
		return b, nil
	}
	b, err := DecodeBlock(p)
	if err != nil {
		return nil, err
	}
	s.blocks.Add(h, b)
	return b, nil
}

// Advance integrates st through the block in payload for at most
// maxSteps steps.
//
// It stops early with StatusExitedDomain once the state leaves the block,
// or with StatusTerminated on max time, stagnation or a non-finite state.
func (s *RK4) Advance(st ir.State, payload ir.Payload, maxSteps int) (ir.Outcome, error) {
	b, err := s.block(payload)
	if err != nil {
		return ir.Outcome{}, err
	}

	out := ir.Outcome{State: st}
	for out.Steps < maxSteps {
		if s.maxTime > 0 && out.State.Time >= s.maxTime {
			return terminated(out, ir.ReasonMaxTime), nil
		}
		h := s.stepSize
		if s.maxTime > 0 && out.State.Time+h > s.maxTime {
			h = s.maxTime - out.State.Time
		}

		p := out.State.Pos
		k1 := b.Field.Velocity(p)
		if k1.Norm() < StagnationSpeed {
			return terminated(out, ir.ReasonStagnation), nil
		}
		k2 := b.Field.Velocity(p.Add(k1.Scale(h / 2)))
		k3 := b.Field.Velocity(p.Add(k2.Scale(h / 2)))
		k4 := b.Field.Velocity(p.Add(k3.Scale(h)))
		next := p.Add(k1.Add(k2.Scale(2)).Add(k3.Scale(2)).Add(k4).Scale(h / 6))
		if !next.IsFinite() {
			return terminated(out, ir.ReasonNonFinite), nil
		}

		out.State = ir.State{Pos: next, Time: out.State.Time + h}
		out.Steps++

		if s.maxTime > 0 && out.State.Time >= s.maxTime {
			return terminated(out, ir.ReasonMaxTime), nil
		}
		if !b.Contains(out.State) {
			out.Status = ir.StatusExitedDomain
			return out, nil
		}
	}
	out.Status = ir.StatusOK
	return out, nil
}

func terminated(out ir.Outcome, reason string) ir.Outcome {
	out.Status = ir.StatusTerminated
	out.Reason = reason
	return out
}
