// Package field provides reference collaborators for the advection
// engine: a regular block decomposition of a box (mesh provider and
// locator), analytic velocity fields, a fixed-step RK4 solver and a seed
// generator.
package field
