// Package channel implements the message channel between ranks.
//
// A Channel carries two logical message kinds: small control messages
// (Done, DatasetRequest) and bulk payloads (DatasetPayload). The engine
// only ever calls Send and the non-blocking Poll; Ready is an idle hint
// that lets a driver loop park instead of spinning when it has no local
// work.
//
// Implementations:
//   - Hub: in-process mailboxes, one per rank. Optional frame encoding
//     (ranks never share payload memory) and fault injection (bounded
//     duplication, in-batch reordering) for termination tests.
//   - Stream: the same contract over io.ReadWriteCloser peers; Connect
//     builds a full TCP mesh.
//   - Trace: a recording wrapper that stamps every sent message with a
//     global logical sequence number.
//
// Delivery guarantees: messages are never lost while both ends are open.
// Hub without faults and Stream additionally preserve per-pair order.
package channel
