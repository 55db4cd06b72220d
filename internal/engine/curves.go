package engine

import (
	"github.com/roach88/advect/internal/ir"
)

// handle indexes a curve in the arena.
type handle int32

// slot names the container that owns a curve.
type slot uint8

const (
	slotStepping slot = iota
	slotActive
	slotOOB
	slotTerminated
	slotTaken
)

func (s slot) String() string {
	switch s {
	case slotStepping:
		return "stepping"
	case slotActive:
		return "active"
	case slotOOB:
		return "oob"
	case slotTerminated:
		return "terminated"
	case slotTaken:
		return "taken"
	}
	return "unknown"
}

// Counts is a snapshot of how a rank's curves are distributed.
type Counts struct {
	Active     int `json:"active"`
	OOB        int `json:"oob"`
	Terminated int `json:"terminated"`
	Stepping   int `json:"stepping"`
	Taken      int `json:"taken"`
}

// Total returns the number of curves the rank accounts for.
func (c Counts) Total() int {
	return c.Active + c.OOB + c.Terminated + c.Stepping + c.Taken
}

// curveSet is the arena of curves owned by one rank.
//
// Queues hold handles only. Every move names the container it takes the
// curve from and fails if the curve is not there, so a curve can be
// neither duplicated nor lost.
type curveSet struct {
	curves []ir.Curve
	owner  []slot

	active     []handle
	activeHead int

	// oob groups blocked curves by the domain they wait for, FIFO per key.
	oob    map[ir.DomainKey][]handle
	oobLen int

	terminated []handle
	stepping   int
	taken      int
}

func newCurveSet() *curveSet {
	return &curveSet{oob: make(map[ir.DomainKey][]handle)}
}

// add places a new curve in the stepping slot.
func (s *curveSet) add(c ir.Curve) handle {
	h := handle(len(s.curves))
	s.curves = append(s.curves, c)
	s.owner = append(s.owner, slotStepping)
	s.stepping++
	return h
}

func (s *curveSet) get(h handle) *ir.Curve {
	return &s.curves[h]
}

func (s *curveSet) activeLen() int {
	return len(s.active) - s.activeHead
}

func (s *curveSet) counts() Counts {
	return Counts{
		Active:     s.activeLen(),
		OOB:        s.oobLen,
		Terminated: len(s.terminated),
		Stepping:   s.stepping,
		Taken:      s.taken,
	}
}

// check moves h out of from into to.
func (s *curveSet) check(h handle, from, to slot) error {
	if int(h) < 0 || int(h) >= len(s.owner) {
		return invariantError(-1, "curve handle %d out of range", h)
	}
	if s.owner[h] != from {
		return invariantError(-1, "curve %d: move %s->%s but owned by %s",
			s.curves[h].ID, from, to, s.owner[h])
	}
	s.owner[h] = to
	if from == slotStepping {
		s.stepping--
	}
	if to == slotStepping {
		s.stepping++
	}
	return nil
}

// pushActive moves a stepping curve to the back of Active.
func (s *curveSet) pushActive(h handle) error {
	if err := s.check(h, slotStepping, slotActive); err != nil {
		return err
	}
	s.active = append(s.active, h)
	return nil
}

// popActive moves the front of Active into the stepping slot.
func (s *curveSet) popActive() (handle, bool, error) {
	if s.activeLen() == 0 {
		return 0, false, nil
	}
	h := s.active[s.activeHead]
	s.activeHead++
	if s.activeHead == len(s.active) {
		s.active = s.active[:0]
		s.activeHead = 0
	}
	if err := s.check(h, slotActive, slotStepping); err != nil {
		return 0, false, err
	}
	return h, true, nil
}

// pushOOB parks a stepping curve under the key it is waiting for.
func (s *curveSet) pushOOB(h handle) error {
	if err := s.check(h, slotStepping, slotOOB); err != nil {
		return err
	}
	key := s.curves[h].Domain
	s.oob[key] = append(s.oob[key], h)
	s.oobLen++
	return nil
}

// releaseOOB moves every curve waiting for key into the stepping slot,
// in the order they were parked.
func (s *curveSet) releaseOOB(key ir.DomainKey) ([]handle, error) {
	hs, ok := s.oob[key]
	if !ok {
		return nil, nil
	}
	delete(s.oob, key)
	s.oobLen -= len(hs)
	for _, h := range hs {
		if err := s.check(h, slotOOB, slotStepping); err != nil {
			return nil, err
		}
	}
	return hs, nil
}

// nextOOB picks the OOB curve with the lowest DomainKey, ties broken by
// curve id.
func (s *curveSet) nextOOB() (handle, ir.DomainKey, bool) {
	var (
		best    handle
		bestKey ir.DomainKey
		found   bool
	)
	for key, hs := range s.oob {
		for _, h := range hs {
			if !found {
				best, bestKey, found = h, key, true
				continue
			}
			c := key.Compare(bestKey)
			if c < 0 || (c == 0 && s.curves[h].ID < s.curves[best].ID) {
				best, bestKey = h, key
			}
		}
	}
	return best, bestKey, found
}

// terminate moves a stepping curve to Terminated.
func (s *curveSet) terminate(h handle) error {
	if err := s.check(h, slotStepping, slotTerminated); err != nil {
		return err
	}
	s.terminated = append(s.terminated, h)
	return nil
}

// take moves every Terminated curve out of the engine, in termination order.
func (s *curveSet) take() []ir.Curve {
	if len(s.terminated) == 0 {
		return nil
	}
	out := make([]ir.Curve, 0, len(s.terminated))
	for _, h := range s.terminated {
		s.owner[h] = slotTaken
		out = append(out, s.curves[h])
	}
	s.taken += len(s.terminated)
	s.terminated = nil
	return out
}
