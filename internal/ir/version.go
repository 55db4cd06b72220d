package ir

// Version constants for the wire format and engine.
const (
	// WireVersion is the frame codec version carried in every frame header.
	WireVersion = 1

	// EngineVersion is the advection engine version recorded with each run.
	EngineVersion = "0.1.0"
)
