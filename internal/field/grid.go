package field

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/advect/internal/ir"
)

// GridSpec describes a regular block decomposition of an axis-aligned box.
type GridSpec struct {
	Min    ir.Vec3
	Max    ir.Vec3
	Blocks [3]int

	// TimeSteps slabs of StepDuration each, starting at time 0.
	// A single time step covers all time.
	TimeSteps    int
	StepDuration float64
}

// Block is the payload of one domain.
type Block struct {
	Key ir.DomainKey `json:"key"`
	Min ir.Vec3      `json:"min"`
	Max ir.Vec3      `json:"max"`

	// TimeBounded is false for a single-slab grid.
	TimeBounded bool    `json:"time_bounded"`
	TStart      float64 `json:"t_start"`
	TEnd        float64 `json:"t_end"`

	Field Field `json:"field"`
}

// Contains reports whether s lies in the block, lower bounds inclusive.
func (b *Block) Contains(s ir.State) bool {
	for a := 0; a < 3; a++ {
		if !(s.Pos[a] >= b.Min[a] && s.Pos[a] < b.Max[a]) {
			return false
		}
	}
	if b.TimeBounded {
		return s.Time >= b.TStart && s.Time < b.TEnd
	}
	return true
}

// DecodeBlock parses a payload produced by Grid.Load.
func DecodeBlock(p ir.Payload) (*Block, error) {
	var b Block
	if err := json.Unmarshal(p, &b); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	return &b, nil
}

// Grid is the mesh provider and locator for a GridSpec.
// It is immutable and safe for concurrent use.
type Grid struct {
	spec  GridSpec
	field Field
}

// NewGrid validates spec and field.
func NewGrid(spec GridSpec, field Field) (*Grid, error) {
	for a := 0; a < 3; a++ {
		if spec.Blocks[a] <= 0 {
			return nil, fmt.Errorf("grid: blocks[%d] must be positive, got %d", a, spec.Blocks[a])
		}
		if !(spec.Min[a] < spec.Max[a]) {
			return nil, fmt.Errorf("grid: empty extent on axis %d", a)
		}
	}
	if !spec.Min.IsFinite() || !spec.Max.IsFinite() {
		return nil, errors.New("grid: bounds must be finite")
	}
	if spec.TimeSteps <= 0 {
		return nil, fmt.Errorf("grid: time steps must be positive, got %d", spec.TimeSteps)
	}
	if spec.TimeSteps > 1 && !(spec.StepDuration > 0) {
		return nil, errors.New("grid: step duration must be positive with more than one time step")
	}
	if err := field.Validate(); err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}
	return &Grid{spec: spec, field: field}, nil
}

// Domains returns the number of spatial blocks.
func (g *Grid) Domains() int {
	return g.spec.Blocks[0] * g.spec.Blocks[1] * g.spec.Blocks[2]
}

// TimeSteps returns the number of time slabs.
func (g *Grid) TimeSteps() int { return g.spec.TimeSteps }

// bound returns the lower edge of block i on axis a. The edge past the
// last block is exactly Max.
func (g *Grid) bound(a, i int) float64 {
	n := g.spec.Blocks[a]
	if i >= n {
		return g.spec.Max[a]
	}
	return g.spec.Min[a] + (g.spec.Max[a]-g.spec.Min[a])*float64(i)/float64(n)
}

// axisIndex finds the block on axis a whose [bound(i), bound(i+1)) holds x.
func (g *Grid) axisIndex(a int, x float64) (int, bool) {
	if !(x >= g.spec.Min[a] && x < g.spec.Max[a]) {
		return 0, false
	}
	n := g.spec.Blocks[a]
	i := int(math.Floor((x - g.spec.Min[a]) / (g.spec.Max[a] - g.spec.Min[a]) * float64(n)))
	i = max(0, min(i, n-1))
	// Correct rounding so Locate agrees with Block.Contains.
	for i > 0 && x < g.bound(a, i) {
		i--
	}
	for i < n-1 && x >= g.bound(a, i+1) {
		i++
	}
	return i, true
}

func (g *Grid) timeIndex(t float64) (int, bool) {
	if g.spec.TimeSteps == 1 {
		return 0, !math.IsNaN(t)
	}
	if !(t >= 0) {
		return 0, false
	}
	ts := int(math.Floor(t / g.spec.StepDuration))
	if ts >= g.spec.TimeSteps {
		return 0, false
	}
	return ts, true
}

// Locate maps a state to the domain containing it.
func (g *Grid) Locate(s ir.State) (ir.DomainKey, bool) {
	var idx [3]int
	for a := 0; a < 3; a++ {
		i, ok := g.axisIndex(a, s.Pos[a])
		if !ok {
			return ir.DomainKey{}, false
		}
		idx[a] = i
	}
	ts, ok := g.timeIndex(s.Time)
	if !ok {
		return ir.DomainKey{}, false
	}
	nx, ny := g.spec.Blocks[0], g.spec.Blocks[1]
	return ir.DomainKey{Domain: idx[0] + nx*(idx[1]+ny*idx[2]), TimeStep: ts}, true
}

// Block returns the block for key.
func (g *Grid) Block(key ir.DomainKey) (Block, error) {
	if key.Domain < 0 || key.Domain >= g.Domains() || key.TimeStep < 0 || key.TimeStep >= g.spec.TimeSteps {
		return Block{}, fmt.Errorf("grid: no domain %s", key)
	}
	nx, ny := g.spec.Blocks[0], g.spec.Blocks[1]
	idx := [3]int{key.Domain % nx, (key.Domain / nx) % ny, key.Domain / (nx * ny)}

	b := Block{Key: key, Field: g.field}
	for a := 0; a < 3; a++ {
		b.Min[a] = g.bound(a, idx[a])
		b.Max[a] = g.bound(a, idx[a]+1)
	}
	if g.spec.TimeSteps > 1 {
		b.TimeBounded = true
		b.TStart = g.spec.StepDuration * float64(key.TimeStep)
		b.TEnd = g.spec.StepDuration * float64(key.TimeStep+1)
	}
	return b, nil
}

// Load encodes the block for key.
func (g *Grid) Load(key ir.DomainKey) (ir.Payload, error) {
	b, err := g.Block(key)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("grid: encode %s: %w", key, err)
	}
	return data, nil
}
