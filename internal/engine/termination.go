package engine

// terminationDetector counts Done announcements.
//
// Announcements are kept as a set of ranks, so a duplicated Done is
// counted once and reported as an anomaly. Global termination is reached
// when every rank, including this one, has announced.
type terminationDetector struct {
	nRanks    int
	announced bool
	from      map[int]struct{}
}

func newTerminationDetector(nRanks int) *terminationDetector {
	return &terminationDetector{nRanks: nRanks, from: make(map[int]struct{}, nRanks)}
}

// receive records a Done from rank. It returns false for an out-of-range
// rank or a duplicate.
func (t *terminationDetector) receive(rank int) bool {
	if rank < 0 || rank >= t.nRanks {
		return false
	}
	if _, dup := t.from[rank]; dup {
		return false
	}
	t.from[rank] = struct{}{}
	return true
}

func (t *terminationDetector) doneCount() int {
	return len(t.from)
}

func (t *terminationDetector) complete() bool {
	return len(t.from) == t.nRanks
}
