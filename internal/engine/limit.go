package engine

// DefaultStepBudget is the number of solver steps a curve may take per
// driver iteration before yielding to message handling.
const DefaultStepBudget = 64

// stepLimit bounds solver work per iteration and per curve.
//
// The per-iteration budget keeps a rank responsive to peers while it
// advances long curves. The per-curve limit guarantees that every curve
// terminates even in a field with closed orbits.
type stepLimit struct {
	perIteration int
	perCurve     int // zero disables the limit
}

// budget returns how many steps a curve that has taken done steps may
// take now. exhausted is true when the per-curve limit has been reached.
func (l stepLimit) budget(done int) (n int, exhausted bool) {
	n = l.perIteration
	if l.perCurve > 0 {
		remaining := l.perCurve - done
		if remaining <= 0 {
			return 0, true
		}
		if remaining < n {
			n = remaining
		}
	}
	return n, false
}

// reached reports whether a curve that has taken done steps is at its limit.
func (l stepLimit) reached(done int) bool {
	return l.perCurve > 0 && done >= l.perCurve
}
