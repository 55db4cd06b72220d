// Package testutil provides deterministic collaborators for engine and
// cluster tests: a one-dimensional mesh, a constant-velocity solver and a
// fixed run id generator.
package testutil
