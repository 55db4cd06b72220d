// Package ir holds the shared data model of the advection engine.
//
// Every other internal package imports ir; ir imports nothing internal.
// The types here are the vocabulary exchanged between ranks and between
// the engine and its collaborators:
//   - DomainKey names one mesh block at one time step
//   - Curve is an integral curve owned by exactly one rank
//   - Message is the unit carried by the message channel
//
// Key design constraints:
//   - DomainKey equality and ordering are total and identical on every rank
//   - Payloads are opaque byte slices; once installed they are never mutated
//   - Canonical JSON (RFC 8785) is used for fingerprints and golden traces
package ir
