package ir

import (
	"fmt"
	"math"
)

// DomainKey identifies one mesh block at one time step.
// It is the cache key on every rank and the input to the rank directory.
type DomainKey struct {
	Domain   int `json:"domain" yaml:"domain" toml:"domain"`
	TimeStep int `json:"time_step" yaml:"time_step" toml:"time_step"`
}

// String renders the key as "domain@timestep".
func (k DomainKey) String() string {
	return fmt.Sprintf("%d@%d", k.Domain, k.TimeStep)
}

// Compare orders keys by domain index, then time step.
// Returns -1, 0 or +1.
func (k DomainKey) Compare(o DomainKey) int {
	switch {
	case k.Domain < o.Domain:
		return -1
	case k.Domain > o.Domain:
		return 1
	case k.TimeStep < o.TimeStep:
		return -1
	case k.TimeStep > o.TimeStep:
		return 1
	}
	return 0
}

// CurveID is the globally unique id of an integral curve.
// Ids are assigned by the seed generator and never reused within a run.
type CurveID int64

// Status is the advection status of a curve.
type Status int

const (
	// StatusOK means the curve can keep advancing in its current domain.
	StatusOK Status = iota
	// StatusExitedDomain means the curve left its domain and needs another one.
	StatusExitedDomain
	// StatusTerminated means the curve is finished.
	StatusTerminated
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusExitedDomain:
		return "exited_domain"
	case StatusTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Termination reasons attached to curves.
const (
	ReasonMaxSteps     = "max steps"
	ReasonMaxTime      = "max time"
	ReasonOutsideMesh  = "outside mesh"
	ReasonStagnation   = "zero velocity"
	ReasonNonFinite    = "non-finite state"
	ReasonSolverFailed = "solver failure"
	ReasonUnavailable  = "domain unavailable"
	ReasonStalled      = "stalled at domain boundary"
)

// Vec3 is a point or vector in 3-space.
type Vec3 [3]float64

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Scale returns s * v.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{s * v[0], s * v[1], s * v[2]}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// IsFinite reports whether every component is neither NaN nor infinite.
func (v Vec3) IsFinite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// State is the solver state of a curve.
// The engine never inspects it; only the solver and locator do.
type State struct {
	Pos  Vec3    `json:"pos"`
	Time float64 `json:"time"`
}

// Curve is one integral curve.
//
// Ownership is exclusive: at any instant a curve lives in exactly one
// queue of exactly one rank (or in the driver's stepping slot).
type Curve struct {
	ID        CurveID   `json:"id"`
	Domain    DomainKey `json:"domain"`
	State     State     `json:"state"`
	StepCount int       `json:"step_count"`
	Status    Status    `json:"status"`

	// Reason is set when Status is StatusTerminated.
	Reason string `json:"reason,omitempty"`
}

// Outcome is the result of advancing a curve inside one domain.
type Outcome struct {
	State  State
	Status Status
	Steps  int

	// Reason explains a StatusTerminated outcome.
	Reason string
}

// Seed is one entry of the global ordered seed list.
type Seed struct {
	ID   CurveID `json:"id" yaml:"id"`
	Pos  Vec3    `json:"pos" yaml:"pos"`
	Time float64 `json:"time" yaml:"time"`
}

// Payload is the opaque serialized form of one mesh domain.
// Payloads are read-only once installed in a cache.
type Payload []byte
