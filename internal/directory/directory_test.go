package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/advect/internal/ir"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name                      string
		strategy                  Strategy
		domains, timeSteps, ranks int
	}{
		{"zero domains", StrategyBlock, 0, 1, 1},
		{"zero time steps", StrategyBlock, 1, 0, 1},
		{"zero ranks", StrategyBlock, 1, 1, 0},
		{"unknown strategy", Strategy("random"), 4, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.strategy, tt.domains, tt.timeSteps, tt.ranks)
			assert.Error(t, err)
		})
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyBlock, s)

	s, err = ParseStrategy("hashed")
	require.NoError(t, err)
	assert.Equal(t, StrategyHashed, s)

	_, err = ParseStrategy("nope")
	assert.Error(t, err)
}

func TestBlockOwner(t *testing.T) {
	// 10 domains over 4 ranks: sizes 3,3,2,2.
	d, err := New(StrategyBlock, 10, 2, 4)
	require.NoError(t, err)

	want := []int{0, 0, 0, 1, 1, 1, 2, 2, 3, 3}
	for dom, rank := range want {
		for ts := 0; ts < 2; ts++ {
			got, err := d.Owner(ir.DomainKey{Domain: dom, TimeStep: ts})
			require.NoError(t, err)
			assert.Equal(t, rank, got, "domain %d time step %d", dom, ts)
		}
	}
}

func TestBlockOwner_MoreRanksThanDomains(t *testing.T) {
	d, err := New(StrategyBlock, 3, 1, 5)
	require.NoError(t, err)

	assert.Equal(t, 0, d.MustOwner(ir.DomainKey{Domain: 0}))
	assert.Equal(t, 1, d.MustOwner(ir.DomainKey{Domain: 1}))
	assert.Equal(t, 2, d.MustOwner(ir.DomainKey{Domain: 2}))
	assert.Empty(t, d.Owned(3))
	assert.Empty(t, d.Owned(4))
}

func TestRoundRobinOwner(t *testing.T) {
	d, err := New(StrategyRoundRobin, 3, 2, 2)
	require.NoError(t, err)

	// Linear index = time step * domains + domain.
	assert.Equal(t, 0, d.MustOwner(ir.DomainKey{Domain: 0, TimeStep: 0}))
	assert.Equal(t, 1, d.MustOwner(ir.DomainKey{Domain: 1, TimeStep: 0}))
	assert.Equal(t, 0, d.MustOwner(ir.DomainKey{Domain: 2, TimeStep: 0}))
	assert.Equal(t, 1, d.MustOwner(ir.DomainKey{Domain: 0, TimeStep: 1}))
}

func TestHashedOwner_DeterministicAndInRange(t *testing.T) {
	a, err := New(StrategyHashed, 16, 4, 3)
	require.NoError(t, err)
	b, err := New(StrategyHashed, 16, 4, 3)
	require.NoError(t, err)

	for dom := 0; dom < 16; dom++ {
		for ts := 0; ts < 4; ts++ {
			key := ir.DomainKey{Domain: dom, TimeStep: ts}
			ra, err := a.Owner(key)
			require.NoError(t, err)
			assert.Equal(t, ra, b.MustOwner(key))
			assert.GreaterOrEqual(t, ra, 0)
			assert.Less(t, ra, 3)
		}
	}
	assert.Equal(t, HashKey(ir.DomainKey{Domain: 5, TimeStep: 1}), HashKey(ir.DomainKey{Domain: 5, TimeStep: 1}))
	assert.NotEqual(t, HashKey(ir.DomainKey{Domain: 5, TimeStep: 1}), HashKey(ir.DomainKey{Domain: 1, TimeStep: 5}))
}

func TestOwner_OutsideMesh(t *testing.T) {
	d, err := New(StrategyBlock, 4, 1, 2)
	require.NoError(t, err)

	for _, key := range []ir.DomainKey{{Domain: -1}, {Domain: 4}, {Domain: 0, TimeStep: 1}} {
		_, err := d.Owner(key)
		assert.Error(t, err, "key %s", key)
		assert.False(t, d.Contains(key))
	}
	assert.Panics(t, func() { d.MustOwner(ir.DomainKey{Domain: 9}) })
}

func TestOwned_CoversEveryKeyOnce(t *testing.T) {
	for _, strategy := range Strategies {
		t.Run(string(strategy), func(t *testing.T) {
			d, err := New(strategy, 7, 3, 4)
			require.NoError(t, err)

			seen := make(map[ir.DomainKey]int)
			for r := 0; r < d.Ranks(); r++ {
				for _, key := range d.Owned(r) {
					seen[key]++
					assert.Equal(t, r, d.MustOwner(key))
				}
			}
			assert.Len(t, seen, 21)
			for key, n := range seen {
				assert.Equal(t, 1, n, "key %s owned %d times", key, n)
			}
		})
	}
}
