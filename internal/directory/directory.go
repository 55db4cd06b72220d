// Package directory maps mesh domains to the ranks that own them and
// partitions the global seed list across ranks.
//
// Both mappings are pure functions of their inputs. A Directory is built
// once per run and is immutable afterwards, so every rank that builds one
// from the same parameters agrees on every owner without communicating.
package directory

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/advect/internal/ir"
)

// Strategy names a domain-to-rank partition.
type Strategy string

const (
	// StrategyBlock gives each rank a contiguous run of domain indices.
	// All time steps of a domain live on the same rank.
	StrategyBlock Strategy = "block"

	// StrategyRoundRobin deals linear (time step, domain) indices out in turn.
	StrategyRoundRobin Strategy = "round-robin"

	// StrategyHashed assigns keys by a 64-bit xxhash of the key.
	StrategyHashed Strategy = "hashed"
)

// Strategies lists the supported partition strategies.
var Strategies = []Strategy{StrategyBlock, StrategyRoundRobin, StrategyHashed}

// ParseStrategy validates a strategy name. Empty selects StrategyBlock.
func ParseStrategy(s string) (Strategy, error) {
	if s == "" {
		return StrategyBlock, nil
	}
	for _, known := range Strategies {
		if string(known) == s {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown partition strategy %q (want one of %v)", s, Strategies)
}

// Directory is the immutable domain-to-rank mapping of one run.
type Directory struct {
	strategy  Strategy
	domains   int
	timeSteps int
	ranks     int

	// blockStart[r] is the first domain index owned by rank r under
	// StrategyBlock; blockStart[ranks] == domains.
	blockStart []int
}

// New builds a Directory over domains x timeSteps keys and ranks owners.
func New(strategy Strategy, domains, timeSteps, ranks int) (*Directory, error) {
	if domains <= 0 {
		return nil, fmt.Errorf("directory: domains must be positive, got %d", domains)
	}
	if timeSteps <= 0 {
		return nil, fmt.Errorf("directory: time steps must be positive, got %d", timeSteps)
	}
	if ranks <= 0 {
		return nil, fmt.Errorf("directory: ranks must be positive, got %d", ranks)
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}

	d := &Directory{
		strategy:  strategy,
		domains:   domains,
		timeSteps: timeSteps,
		ranks:     ranks,
	}
	if strategy == StrategyBlock {
		d.blockStart = blockStarts(domains, ranks)
	}
	return d, nil
}

// Owner returns the rank owning key. Keys outside the mesh return an error.
func (d *Directory) Owner(key ir.DomainKey) (int, error) {
	if !d.Contains(key) {
		return 0, fmt.Errorf("directory: key %s outside %d domains x %d time steps", key, d.domains, d.timeSteps)
	}
	switch d.strategy {
	case StrategyRoundRobin:
		return d.linear(key) % d.ranks, nil
	case StrategyHashed:
		return int(HashKey(key) % uint64(d.ranks)), nil
	default:
		return d.blockOwner(key.Domain), nil
	}
}

// MustOwner is like Owner but panics for keys outside the mesh.
// Use only when the key came from the mesh locator.
func (d *Directory) MustOwner(key ir.DomainKey) int {
	r, err := d.Owner(key)
	if err != nil {
		panic(err)
	}
	return r
}

// Contains reports whether key names a domain of this mesh.
func (d *Directory) Contains(key ir.DomainKey) bool {
	return key.Domain >= 0 && key.Domain < d.domains &&
		key.TimeStep >= 0 && key.TimeStep < d.timeSteps
}

// Owned returns every key owned by rank, in ascending key order.
func (d *Directory) Owned(rank int) []ir.DomainKey {
	var keys []ir.DomainKey
	for dom := 0; dom < d.domains; dom++ {
		for ts := 0; ts < d.timeSteps; ts++ {
			key := ir.DomainKey{Domain: dom, TimeStep: ts}
			if d.MustOwner(key) == rank {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// Strategy returns the partition strategy.
func (d *Directory) Strategy() Strategy { return d.strategy }

// Domains returns the number of spatial domains.
func (d *Directory) Domains() int { return d.domains }

// TimeSteps returns the number of time steps.
func (d *Directory) TimeSteps() int { return d.timeSteps }

// Ranks returns the number of ranks.
func (d *Directory) Ranks() int { return d.ranks }

func (d *Directory) linear(key ir.DomainKey) int {
	return key.TimeStep*d.domains + key.Domain
}

func (d *Directory) blockOwner(domain int) int {
	// blockStart is non-decreasing and empty blocks only occur at the tail,
	// so the last rank whose block starts at or before domain owns it.
	lo, hi := 0, d.ranks-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if d.blockStart[mid] <= domain {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// blockStarts computes contiguous near-equal blocks of n items over ranks,
// the first n%ranks ranks receiving one extra item.
func blockStarts(n, ranks int) []int {
	starts := make([]int, ranks+1)
	base, extra := n/ranks, n%ranks
	for r := 0; r < ranks; r++ {
		size := base
		if r < extra {
			size++
		}
		starts[r+1] = starts[r] + size
	}
	return starts
}

// HashKey returns the xxhash of key's fixed-width big-endian encoding.
// The encoding is platform independent so every rank computes the same value.
func HashKey(key ir.DomainKey) uint64 {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(int64(key.Domain)))
	binary.BigEndian.PutUint64(buf[8:16], uint64(int64(key.TimeStep)))
	return xxhash.Sum64(buf[:])
}
