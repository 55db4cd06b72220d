package store

import (
	"errors"

	"github.com/roach88/advect/internal/ir"
)

// ErrRunNotFound is returned by ReadRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run is the header row of one run.
type Run struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
	Ranks       int    `json:"ranks"`
	Pattern     string `json:"pattern"`
	Partition   string `json:"partition"`

	// Config is the canonical JSON of the run configuration.
	Config string `json:"config"`
}

// CurveRecord is a terminated curve and the rank that finished it.
type CurveRecord struct {
	Rank  int      `json:"rank"`
	Curve ir.Curve `json:"curve"`
}
