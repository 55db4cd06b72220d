package field

import (
	"errors"
	"fmt"

	"github.com/roach88/advect/internal/ir"
)

// Rake places Count seeds evenly on the segment From..To, ends included.
type Rake struct {
	From  ir.Vec3
	To    ir.Vec3
	Count int
}

// SeedSpec lists explicit seed points and rakes. Seeds start at Time.
type SeedSpec struct {
	Points []ir.Vec3
	Rakes  []Rake
	Time   float64
}

// GenerateSeeds expands spec into the global ordered seed list.
// Ids are assigned 0, 1, ... in order: points first, then each rake.
func GenerateSeeds(spec SeedSpec) ([]ir.Seed, error) {
	var seeds []ir.Seed
	add := func(p ir.Vec3) error {
		if !p.IsFinite() {
			return fmt.Errorf("seed %d: position must be finite", len(seeds))
		}
		seeds = append(seeds, ir.Seed{ID: ir.CurveID(len(seeds)), Pos: p, Time: spec.Time})
		return nil
	}

	for _, p := range spec.Points {
		if err := add(p); err != nil {
			return nil, err
		}
	}
	for i, r := range spec.Rakes {
		if r.Count <= 0 {
			return nil, fmt.Errorf("rake %d: count must be positive, got %d", i, r.Count)
		}
		if r.Count == 1 {
			if err := add(r.From); err != nil {
				return nil, err
			}
			continue
		}
		delta := r.To.Sub(r.From).Scale(1 / float64(r.Count-1))
		for j := 0; j < r.Count; j++ {
			if err := add(r.From.Add(delta.Scale(float64(j)))); err != nil {
				return nil, err
			}
		}
	}
	if len(seeds) == 0 {
		return nil, errors.New("no seeds")
	}
	return seeds, nil
}
