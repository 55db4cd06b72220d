package testutil

// FixedRunID returns the same run id every time.
//
// A scenario run with a fixed id produces byte-identical stored results.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a generator for id. An empty id selects
// "test-run-default".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed id.
func (g *FixedRunID) Generate() string {
	return g.id
}
