package directory

import (
	"fmt"

	"github.com/roach88/advect/internal/ir"
)

// PartitionSeeds splits the global ordered seed list into ranks contiguous
// near-equal blocks. The first len(seeds)%ranks ranks receive one extra seed.
//
// Each returned slice is a fresh copy; mutating one never affects another
// rank's slice or the input.
func PartitionSeeds(seeds []ir.Seed, ranks int) ([][]ir.Seed, error) {
	if ranks <= 0 {
		return nil, fmt.Errorf("partition seeds: ranks must be positive, got %d", ranks)
	}

	starts := blockStarts(len(seeds), ranks)
	out := make([][]ir.Seed, ranks)
	for r := 0; r < ranks; r++ {
		block := seeds[starts[r]:starts[r+1]]
		out[r] = make([]ir.Seed, len(block))
		copy(out[r], block)
	}
	return out, nil
}
