package engine

import (
	"context"
	"sort"
	"strings"
)

// PatternOnDemand is the name of the fetch-data-to-curve pattern.
const PatternOnDemand = "on-demand"

// Pattern is a communication strategy that drives one rank.
//
// All patterns share the curve and domain data model; they differ in how
// a rank obtains the data a curve needs.
type Pattern interface {
	Name() string

	// Iterate runs one driver iteration.
	Iterate(ctx context.Context, e *Engine) error

	// Resume continues a partially executed pass.
	Resume(e *Engine) error

	// NeedsNextTimeStep reports whether curves need another time step.
	NeedsNextTimeStep(e *Engine) (bool, error)
}

var patterns = map[string]func() Pattern{
	PatternOnDemand: func() Pattern { return onDemand{} },
}

// Patterns returns the names of every implemented pattern, sorted.
func Patterns() []string {
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupPattern returns a new instance of the named pattern.
// An empty name selects on-demand.
func LookupPattern(name string) (Pattern, error) {
	if name == "" {
		name = PatternOnDemand
	}
	factory, ok := patterns[name]
	if !ok {
		err := NewConfigurationError("unknown communication pattern %q", name)
		err.Details = map[string]string{"known": strings.Join(Patterns(), ",")}
		return nil, err
	}
	return factory(), nil
}
