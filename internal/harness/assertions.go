package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/advect/internal/engine"
	"github.com/roach88/advect/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			if ev.Key != "" {
				fmt.Fprintf(&buf, "  [%d] %s %d->%d %s (%d bytes)\n", ev.Seq, ev.Kind, ev.From, ev.To, ev.Key, ev.Bytes)
			} else {
				fmt.Fprintf(&buf, "  [%d] %s %d->%d\n", ev.Seq, ev.Kind, ev.From, ev.To)
			}
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure
// messages in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTerminatedCount:
			err = assertTerminatedCount(result, a)
		case AssertMessageCount:
			err = assertMessageCount(result, a)
		case AssertDoneCount:
			err = assertStatCount(result, a, func(s engine.Stats) int { return s.DoneReceived })
		case AssertServedAfterLocalDone:
			err = assertStatCount(result, a, func(s engine.Stats) int { return s.ServedAfterLocalDone })
		case AssertGlobalDone:
			err = assertGlobalDone(result)
		case AssertConservation:
			err = assertConservation(result)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

func describe(a Assertion) string {
	var parts []string
	if a.Kind != "" {
		parts = append(parts, "kind="+a.Kind)
	}
	for _, sel := range []struct {
		name string
		v    *int
	}{{"rank", a.Rank}, {"from", a.From}, {"to", a.To}, {"domain", a.Domain}} {
		if sel.v != nil {
			parts = append(parts, fmt.Sprintf("%s=%d", sel.name, *sel.v))
		}
	}
	if a.Reason != "" {
		parts = append(parts, fmt.Sprintf("reason=%q", a.Reason))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}

func matchInt(sel *int, v int) bool {
	return sel == nil || *sel == v
}

func notRun(typ string) error {
	return &AssertionError{Type: typ, Expected: "a completed run", Actual: "run did not complete"}
}

func assertTerminatedCount(result *Result, a Assertion) error {
	if result.Run == nil {
		return notRun(a.Type)
	}
	n := 0
	for _, rr := range result.Run.Ranks {
		if !matchInt(a.Rank, rr.Rank) {
			continue
		}
		for _, c := range rr.Curves {
			if a.Reason == "" || c.Reason == a.Reason {
				n++
			}
		}
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d curves (%s)", *a.Count, describe(a)),
			Actual:   fmt.Sprintf("%d curves", n),
		}
	}
	return nil
}

func assertMessageCount(result *Result, a Assertion) error {
	n := 0
	for _, ev := range result.Trace {
		if ev.Kind == a.Kind && matchInt(a.From, ev.From) && matchInt(a.To, ev.To) && matchInt(a.Domain, ev.Domain) {
			n++
		}
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d messages (%s)", *a.Count, describe(a)),
			Actual:   fmt.Sprintf("%d messages", n),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertStatCount(result *Result, a Assertion, stat func(engine.Stats) int) error {
	if result.Run == nil {
		return notRun(a.Type)
	}
	n := 0
	for _, rr := range result.Run.Ranks {
		if matchInt(a.Rank, rr.Rank) {
			n += stat(rr.Stats)
		}
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d (%s)", *a.Count, describe(a)),
			Actual:   fmt.Sprintf("%d", n),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertGlobalDone(result *Result) error {
	var behind []string
	for rank, p := range result.Phases {
		if p != engine.PhaseGlobalDone {
			behind = append(behind, fmt.Sprintf("rank %d %s", rank, p))
		}
	}
	if len(result.Phases) == 0 || len(behind) > 0 {
		return &AssertionError{
			Type:     AssertGlobalDone,
			Expected: "every rank GLOBAL_DONE",
			Actual:   strings.Join(behind, ", "),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertConservation checks that every seeded curve terminated exactly
// once across all ranks.
func assertConservation(result *Result) error {
	if result.Run == nil {
		return notRun(AssertConservation)
	}
	seeded := 0
	seen := make(map[ir.CurveID]int)
	var dups []string
	for _, rr := range result.Run.Ranks {
		seeded += rr.Stats.Seeded
		for _, c := range rr.Curves {
			if prev, ok := seen[c.ID]; ok {
				dups = append(dups, fmt.Sprintf("curve %d on ranks %d and %d", c.ID, prev, rr.Rank))
			}
			seen[c.ID] = rr.Rank
		}
	}
	if len(dups) > 0 {
		return &AssertionError{
			Type:     AssertConservation,
			Expected: "each curve terminated once",
			Actual:   strings.Join(dups, "; "),
		}
	}
	if len(seen) != seeded {
		return &AssertionError{
			Type:     AssertConservation,
			Expected: fmt.Sprintf("%d terminated curves", seeded),
			Actual:   fmt.Sprintf("%d terminated curves", len(seen)),
		}
	}
	return nil
}
