package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/advect/internal/ir"
)

func makeSeeds(n int) []ir.Seed {
	seeds := make([]ir.Seed, n)
	for i := range seeds {
		seeds[i] = ir.Seed{ID: ir.CurveID(i), Pos: ir.Vec3{float64(i), 0, 0}}
	}
	return seeds
}

func TestPartitionSeeds_Sizes(t *testing.T) {
	tests := []struct {
		name  string
		seeds int
		ranks int
		want  []int
	}{
		{"even", 8, 4, []int{2, 2, 2, 2}},
		{"remainder to lowest ranks", 10, 4, []int{3, 3, 2, 2}},
		{"fewer seeds than ranks", 2, 4, []int{1, 1, 0, 0}},
		{"no seeds", 0, 3, []int{0, 0, 0}},
		{"single rank", 5, 1, []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, err := PartitionSeeds(makeSeeds(tt.seeds), tt.ranks)
			require.NoError(t, err)
			require.Len(t, parts, tt.ranks)

			sizes := make([]int, len(parts))
			for i, p := range parts {
				sizes[i] = len(p)
			}
			assert.Equal(t, tt.want, sizes)
		})
	}
}

func TestPartitionSeeds_ContiguousAndOrdered(t *testing.T) {
	seeds := makeSeeds(11)
	parts, err := PartitionSeeds(seeds, 3)
	require.NoError(t, err)

	var flat []ir.Seed
	for _, p := range parts {
		flat = append(flat, p...)
	}
	assert.Equal(t, seeds, flat)
}

func TestPartitionSeeds_CopiesInput(t *testing.T) {
	seeds := makeSeeds(4)
	parts, err := PartitionSeeds(seeds, 2)
	require.NoError(t, err)

	parts[0][0].ID = 99
	assert.Equal(t, ir.CurveID(0), seeds[0].ID)
}

func TestPartitionSeeds_InvalidRanks(t *testing.T) {
	_, err := PartitionSeeds(makeSeeds(3), 0)
	assert.Error(t, err)
}
