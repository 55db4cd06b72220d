// Package harness runs conformance scenarios against a complete
// multi-rank run.
//
// # Scenario Format
//
// Scenarios are YAML files with an inline run configuration:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	golden: true
//	max_rounds: 1000
//	faults:
//	  seed: 7
//	  duplicate: 0.3
//	  reorder: true
//	config:
//	  ranks: 2
//	  mesh: { min: [0, 0, 0], max: [2, 1, 1], blocks: [2, 1, 1] }
//	  ...
//	assertions:
//	  - type: message_count
//	    kind: dataset_request
//	    from: 0
//	    count: 1
//	  - type: global_done
//
// # Assertion Types
//
//   - terminated_count: curves terminated, optionally by rank and reason
//   - message_count: messages sent, by kind with optional from, to, domain
//   - done_count: Done messages received, optionally by rank
//   - served_after_local_done: requests served after the server announced
//   - global_done: every rank reached GLOBAL_DONE
//   - conservation: every seeded curve terminated exactly once
//
// # Deterministic Testing
//
// Scenarios run under the lock-step scheduler: each round steps every
// rank once, in rank order, so the message sequence is reproducible. Run
// ids are fixed (scenario.run_id or "test-run-default"). Scenarios marked
// golden compare the message trace against testdata/golden/<name>.golden.
package harness
