// Package engine implements the per-rank driver of distributed particle
// advection.
//
// Each rank owns a fixed set of integral curves and a fixed set of mesh
// domains. The driver advances its curves through whatever domains are
// resident, fetches missing domains from their owning ranks on demand,
// answers the fetches of its peers and detects global termination without
// a coordinator.
//
// ARCHITECTURE:
//
// Single-threaded driver:
// One goroutine calls Step (or Run) per rank. Nothing inside the engine
// locks; ranks interact only through the message channel. An iteration:
//  1. Advance one Active curve for up to the step budget.
//  2. Drain every available message (Done, DatasetRequest, DatasetPayload).
//  3. If only OOB curves remain, make sure the lowest waiting DomainKey has
//     a request outstanding.
//  4. With both queues empty, broadcast Done once (RUNNING -> LOCAL_DONE).
//  5. With Done from every rank, stop (LOCAL_DONE -> GLOBAL_DONE).
//
// A rank in LOCAL_DONE keeps draining and serving requests.
//
// Curve arena:
// Curves live in one slice per engine. Queues hold handles; every move
// names its source container and fails with an INVARIANT error if the
// curve is not there. Conservation is checked after every drain.
//
// Domain cache:
// Resident payloads plus a pending set, at most one outstanding request
// per key. Domains owned by the rank itself are loaded from the mesh
// without messages. An optional LRU bound evicts resident domains; curves
// whose domain was evicted are re-placed when they are next popped.
//
// Communication patterns:
// The driver loop is a Pattern looked up by name. on-demand is the only
// pattern; it rejects Resume and NeedsNextTimeStep with UNSUPPORTED.
package engine
