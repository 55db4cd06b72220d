package config

import (
	"fmt"
	"strconv"

	"go.uber.org/multierr"

	"github.com/roach88/advect/internal/directory"
	"github.com/roach88/advect/internal/engine"
	"github.com/roach88/advect/internal/field"
	"github.com/roach88/advect/internal/ir"
)

// Config describes one advection run.
type Config struct {
	Name      string `yaml:"name" toml:"name" json:"name"`
	Ranks     int    `yaml:"ranks" toml:"ranks" json:"ranks"`
	Pattern   string `yaml:"pattern" toml:"pattern" json:"pattern"`
	Partition string `yaml:"partition" toml:"partition" json:"partition"`

	Mesh    MeshConfig    `yaml:"mesh" toml:"mesh" json:"mesh"`
	Field   FieldConfig   `yaml:"field" toml:"field" json:"field"`
	Solver  SolverConfig  `yaml:"solver" toml:"solver" json:"solver"`
	Seeds   SeedConfig    `yaml:"seeds" toml:"seeds" json:"seeds"`
	Cache   CacheConfig   `yaml:"cache" toml:"cache" json:"cache"`
	Channel ChannelConfig `yaml:"channel" toml:"channel" json:"channel"`
}

// MeshConfig is the block decomposition of the domain box.
type MeshConfig struct {
	Min          ir.Vec3 `yaml:"min" toml:"min" json:"min"`
	Max          ir.Vec3 `yaml:"max" toml:"max" json:"max"`
	Blocks       [3]int  `yaml:"blocks" toml:"blocks" json:"blocks"`
	TimeSteps    int     `yaml:"time_steps" toml:"time_steps" json:"time_steps"`
	StepDuration float64 `yaml:"step_duration" toml:"step_duration" json:"step_duration"`
}

// FieldConfig selects the analytic velocity field.
type FieldConfig struct {
	Kind   string  `yaml:"kind" toml:"kind" json:"kind"`
	Vector ir.Vec3 `yaml:"vector" toml:"vector" json:"vector"`
	Center ir.Vec3 `yaml:"center" toml:"center" json:"center"`
	Axis   ir.Vec3 `yaml:"axis" toml:"axis" json:"axis"`
	Omega  float64 `yaml:"omega" toml:"omega" json:"omega"`
}

// SolverConfig controls integration.
type SolverConfig struct {
	StepSize float64 `yaml:"step_size" toml:"step_size" json:"step_size"`

	// MaxSteps terminates a curve after this many steps. Zero is unlimited.
	MaxSteps int `yaml:"max_steps" toml:"max_steps" json:"max_steps"`

	// MaxTime terminates a curve at this time. Zero is unlimited.
	MaxTime float64 `yaml:"max_time" toml:"max_time" json:"max_time"`

	// StepBudget is the steps per curve per driver iteration.
	StepBudget int `yaml:"step_budget" toml:"step_budget" json:"step_budget"`
}

// SeedConfig lists seed points and rakes.
type SeedConfig struct {
	Points []ir.Vec3    `yaml:"points" toml:"points" json:"points"`
	Rakes  []RakeConfig `yaml:"rakes" toml:"rakes" json:"rakes"`
	Time   float64      `yaml:"time" toml:"time" json:"time"`
}

// RakeConfig is a line of evenly spaced seeds.
type RakeConfig struct {
	From  ir.Vec3 `yaml:"from" toml:"from" json:"from"`
	To    ir.Vec3 `yaml:"to" toml:"to" json:"to"`
	Count int     `yaml:"count" toml:"count" json:"count"`
}

// CacheConfig bounds the per-rank domain cache. Zero is unbounded.
type CacheConfig struct {
	Limit int `yaml:"limit" toml:"limit" json:"limit"`
}

// ChannelConfig tunes the in-process message channel.
type ChannelConfig struct {
	// Encode passes every message through the wire codec.
	Encode bool `yaml:"encode" toml:"encode" json:"encode"`

	// MaxPayloadBytes limits frame payloads. Zero selects the default.
	MaxPayloadBytes uint64 `yaml:"max_payload_bytes" toml:"max_payload_bytes" json:"max_payload_bytes"`
}

// ApplyDefaults fills zero values with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Ranks == 0 {
		c.Ranks = 1
	}
	if c.Pattern == "" {
		c.Pattern = engine.PatternOnDemand
	}
	if c.Partition == "" {
		c.Partition = string(directory.StrategyBlock)
	}
	if c.Mesh.TimeSteps == 0 {
		c.Mesh.TimeSteps = 1
	}
	if c.Field.Axis == (ir.Vec3{}) {
		c.Field.Axis = ir.Vec3{0, 0, 1}
	}
	if c.Solver.StepBudget == 0 {
		c.Solver.StepBudget = engine.DefaultStepBudget
	}
}

// Validate reports every problem in c.
func (c *Config) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	if c.Ranks < 1 {
		add("ranks: must be at least 1, got %d", c.Ranks)
	}
	if _, err := engine.LookupPattern(c.Pattern); err != nil {
		add("pattern: %v", err)
	}
	if _, err := directory.ParseStrategy(c.Partition); err != nil {
		add("partition: %v", err)
	}

	if _, err := field.NewGrid(c.GridSpec(), c.FieldSpec()); err != nil {
		add("mesh: %v", err)
	}

	if !(c.Solver.StepSize > 0) {
		add("solver.step_size: must be positive, got %v", c.Solver.StepSize)
	}
	if c.Solver.MaxSteps < 0 {
		add("solver.max_steps: must not be negative, got %d", c.Solver.MaxSteps)
	}
	if c.Solver.MaxTime < 0 {
		add("solver.max_time: must not be negative, got %v", c.Solver.MaxTime)
	}
	if c.Solver.StepBudget < 1 {
		add("solver.step_budget: must be at least 1, got %d", c.Solver.StepBudget)
	}
	if c.Solver.MaxSteps == 0 && c.Solver.MaxTime == 0 {
		add("solver: one of max_steps or max_time is required so every curve terminates")
	}

	if _, err := field.GenerateSeeds(c.SeedSpec()); err != nil {
		add("seeds: %v", err)
	}

	if c.Cache.Limit != 0 && c.Cache.Limit < engine.MinCacheLimit {
		add("cache.limit: must be 0 or at least %d, got %d", engine.MinCacheLimit, c.Cache.Limit)
	}
	return errs
}

// GridSpec converts the mesh section.
func (c *Config) GridSpec() field.GridSpec {
	return field.GridSpec{
		Min:          c.Mesh.Min,
		Max:          c.Mesh.Max,
		Blocks:       c.Mesh.Blocks,
		TimeSteps:    c.Mesh.TimeSteps,
		StepDuration: c.Mesh.StepDuration,
	}
}

// FieldSpec converts the field section.
func (c *Config) FieldSpec() field.Field {
	return field.Field{
		Kind:   c.Field.Kind,
		Vector: c.Field.Vector,
		Center: c.Field.Center,
		Axis:   c.Field.Axis,
		Omega:  c.Field.Omega,
	}
}

// SeedSpec converts the seeds section.
func (c *Config) SeedSpec() field.SeedSpec {
	spec := field.SeedSpec{Points: c.Seeds.Points, Time: c.Seeds.Time}
	for _, r := range c.Seeds.Rakes {
		spec.Rakes = append(spec.Rakes, field.Rake{From: r.From, To: r.To, Count: r.Count})
	}
	return spec
}

// Domains returns the number of spatial blocks.
func (c *Config) Domains() int {
	return c.Mesh.Blocks[0] * c.Mesh.Blocks[1] * c.Mesh.Blocks[2]
}

// Fingerprint returns a stable hash of the run-defining settings.
// Floats are rendered in shortest round-trip form, so equal configs
// hash equally whatever file format they came from.
func (c *Config) Fingerprint() (string, error) {
	return ir.Fingerprint(ir.DomainConfig, c.canonical())
}

// CanonicalJSON returns the canonical JSON that Fingerprint hashes.
func (c *Config) CanonicalJSON() (string, error) {
	data, err := ir.MarshalCanonical(c.canonical())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Config) canonical() map[string]any {
	rakes := make([]any, 0, len(c.Seeds.Rakes))
	for _, r := range c.Seeds.Rakes {
		rakes = append(rakes, map[string]any{
			"from":  vec(r.From),
			"to":    vec(r.To),
			"count": r.Count,
		})
	}
	points := make([]any, 0, len(c.Seeds.Points))
	for _, p := range c.Seeds.Points {
		points = append(points, vec(p))
	}
	blocks := make([]any, 3)
	for i, b := range c.Mesh.Blocks {
		blocks[i] = b
	}

	return map[string]any{
		"ranks":     c.Ranks,
		"pattern":   c.Pattern,
		"partition": c.Partition,
		"mesh": map[string]any{
			"min":           vec(c.Mesh.Min),
			"max":           vec(c.Mesh.Max),
			"blocks":        blocks,
			"time_steps":    c.Mesh.TimeSteps,
			"step_duration": num(c.Mesh.StepDuration),
		},
		"field": map[string]any{
			"kind":   c.Field.Kind,
			"vector": vec(c.Field.Vector),
			"center": vec(c.Field.Center),
			"axis":   vec(c.Field.Axis),
			"omega":  num(c.Field.Omega),
		},
		"solver": map[string]any{
			"step_size":   num(c.Solver.StepSize),
			"max_steps":   c.Solver.MaxSteps,
			"max_time":    num(c.Solver.MaxTime),
			"step_budget": c.Solver.StepBudget,
		},
		"seeds": map[string]any{
			"points": points,
			"rakes":  rakes,
			"time":   num(c.Seeds.Time),
		},
		"cache": map[string]any{"limit": c.Cache.Limit},
	}
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func vec(v ir.Vec3) []any {
	return []any{num(v[0]), num(v[1]), num(v[2])}
}
