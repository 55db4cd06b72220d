package engine

import (
	"context"

	"github.com/roach88/advect/internal/ir"
)

// onDemand keeps every curve on the rank that seeded it and fetches the
// domains it enters from their owners.
//
// Termination: a rank announces Done once its Active and OOB queues are
// both empty. Curves never arrive from peers in this pattern, so the
// queues cannot refill afterwards and the rank sends no further requests.
// A rank with an outstanding request still holds the waiting curve in
// OOB and cannot have announced. Hence once every rank has announced, no
// request is in flight to anyone and leaving the loop is safe. The
// argument needs no ordering between messages; duplicated Done messages
// are filtered by the detector's rank set.
type onDemand struct{}

func (onDemand) Name() string { return PatternOnDemand }

func (p onDemand) Iterate(_ context.Context, e *Engine) error {
	if e.phase == PhaseRunning {
		if err := p.advance(e); err != nil {
			return err
		}
	}

	if err := p.drain(e); err != nil {
		return err
	}
	if err := e.checkConservation(); err != nil {
		return err
	}

	if e.curves.activeLen() == 0 && e.curves.oobLen > 0 {
		if _, key, ok := e.curves.nextOOB(); ok {
			if err := p.ensureRequested(e, key); err != nil {
				return err
			}
		}
	}

	if e.phase == PhaseRunning && e.curves.activeLen() == 0 && e.curves.oobLen == 0 {
		if err := p.announce(e); err != nil {
			return err
		}
	}

	if e.term.complete() {
		e.setPhase(PhaseGlobalDone)
		e.logger.Info("global termination", "terminated", e.stats.Terminated, "iterations", e.clock.Current())
	}
	return nil
}

func (onDemand) Resume(e *Engine) error {
	return unsupportedError(e.rank, PatternOnDemand, "resuming a partially executed pass")
}

func (onDemand) NeedsNextTimeStep(e *Engine) (bool, error) {
	return false, unsupportedError(e.rank, PatternOnDemand, "querying for another time step mid-run")
}

// advance steps the front Active curve until it terminates, leaves its
// domain or uses up the iteration budget. The domain stays pinned until
// the curve has been placed again.
func (p onDemand) advance(e *Engine) error {
	h, ok, err := e.curves.popActive()
	if err != nil || !ok {
		return err
	}
	c := e.curves.get(h)
	defer e.cache.unpin(c.Domain)

	payload, resident := e.cache.payload(c.Domain)
	if !resident {
		e.metrics.CacheEvent(CacheMiss)
		owner, err := e.owner(c.Domain)
		if err != nil {
			return err
		}
		if owner != e.rank {
			return e.place(h)
		}
		if payload, err = e.loadLocal(c.Domain); err != nil {
			e.logger.Warn("local domain unavailable", "curve", c.ID, "key", c.Domain, "error", err)
			return e.terminate(h, ir.ReasonUnavailable)
		}
	}

	n, exhausted := e.limit.budget(c.StepCount)
	if exhausted {
		return e.terminate(h, ir.ReasonMaxSteps)
	}

	out, err := e.solver.Advance(c.State, payload, n)
	e.stats.CurvesAdvanced++
	if err != nil {
		key := c.Domain
		e.logger.Warn("solver failed", "curve", c.ID,
			"error", &Error{Code: CodeNumerical, Message: "advance", Rank: e.rank, Key: &key, Err: err})
		return e.terminate(h, ir.ReasonSolverFailed)
	}

	c.State = out.State
	c.StepCount += out.Steps
	e.stats.Steps += out.Steps
	e.metrics.CurveAdvanced(out.Steps)

	switch out.Status {
	case ir.StatusTerminated:
		reason := out.Reason
		if reason == "" {
			reason = ir.ReasonSolverFailed
		}
		return e.terminate(h, reason)

	case ir.StatusExitedDomain:
		if e.limit.reached(c.StepCount) {
			return e.terminate(h, ir.ReasonMaxSteps)
		}
		key, inside := e.locator.Locate(c.State)
		if !inside {
			return e.terminate(h, ir.ReasonOutsideMesh)
		}
		if key == c.Domain && out.Steps == 0 {
			return e.terminate(h, ir.ReasonStalled)
		}
		e.logger.Debug("curve exited domain", "curve", c.ID, "from", c.Domain, "to", key, "steps", c.StepCount)
		c.Domain = key
		c.Status = ir.StatusExitedDomain
		return e.place(h)

	default:
		if e.limit.reached(c.StepCount) {
			return e.terminate(h, ir.ReasonMaxSteps)
		}
		return e.activate(h)
	}
}

// drain handles every message currently available, without blocking.
func (p onDemand) drain(e *Engine) error {
	for _, msg := range e.ch.Poll() {
		e.metrics.MessageReceived(msg.Kind)
		e.logger.Debug("message received", "msg", msg)

		switch msg.Kind {
		case ir.KindDone:
			e.stats.DoneReceived++
			if !e.term.receive(msg.From) {
				e.anomaly("duplicate_done", protocolError(e.rank, nil, "done from rank %d already counted", msg.From))
			}
		case ir.KindDatasetRequest:
			if err := p.serve(e, msg.From, msg.Key); err != nil {
				return err
			}
		case ir.KindDatasetPayload:
			if err := p.install(e, msg.Key, msg.Data); err != nil {
				return err
			}
		default:
			e.anomaly("unexpected_kind", protocolError(e.rank, nil, "unexpected %s from rank %d", msg.Kind, msg.From))
		}
	}
	return nil
}

// serve answers a DatasetRequest, whatever this rank's phase. A domain
// that cannot be loaded is answered with an empty payload so the
// requester does not wait forever.
func (p onDemand) serve(e *Engine, from int, key ir.DomainKey) error {
	owner, err := e.dir.Owner(key)
	switch {
	case err != nil:
		e.anomaly("misrouted_request", protocolError(e.rank, &key, "request from rank %d for a domain outside the mesh", from))
	case owner != e.rank:
		e.anomaly("misrouted_request", protocolError(e.rank, &key, "request from rank %d for a domain owned by %d", from, owner))
	}

	payload, ok := e.cache.payload(key)
	if !ok && err == nil {
		loaded, loadErr := e.mesh.Load(key)
		if loadErr != nil {
			e.logger.Warn("serve: domain unavailable", "key", key, "requester", from, "error", loadErr)
		} else {
			payload = loaded
		}
	}

	if err := e.send(from, ir.NewDatasetPayload(e.rank, from, key, payload)); err != nil {
		return err
	}
	e.stats.RequestsServed++
	if e.phase != PhaseRunning {
		e.stats.ServedAfterLocalDone++
	}
	return nil
}

// install caches an arriving payload and reactivates the curves waiting
// for it. A payload nobody asked for is still cached.
func (p onDemand) install(e *Engine, key ir.DomainKey, payload ir.Payload) error {
	if len(payload) == 0 {
		e.cache.clearPending(key)
		hs, err := e.curves.releaseOOB(key)
		if err != nil {
			return err
		}
		e.logger.Warn("domain unavailable at owner", "key", key, "curves", len(hs))
		for _, h := range hs {
			if err := e.terminate(h, ir.ReasonUnavailable); err != nil {
				return err
			}
		}
		return nil
	}

	if !e.cache.install(key, payload) {
		e.anomaly("unrequested_payload", protocolError(e.rank, &key, "payload without a pending request"))
	}
	e.stats.PayloadsInstalled++
	e.metrics.CacheEvent(CacheInstall)

	return p.reactivate(e, key)
}

// reactivate moves the curves waiting for key back to Active.
func (onDemand) reactivate(e *Engine, key ir.DomainKey) error {
	hs, err := e.curves.releaseOOB(key)
	if err != nil {
		return err
	}
	for _, h := range hs {
		if err := e.activate(h); err != nil {
			return err
		}
	}
	if len(hs) > 0 {
		e.logger.Debug("curves reactivated", "key", key, "count", len(hs))
	}
	return nil
}

// ensureRequested makes sure the domain the next OOB curve waits for has
// a request outstanding.
func (p onDemand) ensureRequested(e *Engine, key ir.DomainKey) error {
	if e.cache.isResident(key) {
		return p.reactivate(e, key)
	}
	if e.cache.isPending(key) {
		return nil
	}
	owner, err := e.owner(key)
	if err != nil {
		return err
	}
	return e.requestFrom(owner, key)
}

// announce broadcasts Done to every rank, including this one.
func (p onDemand) announce(e *Engine) error {
	for r := 0; r < e.dir.Ranks(); r++ {
		if err := e.send(r, ir.NewDone(e.rank, r)); err != nil {
			return err
		}
		e.stats.DoneSent++
	}
	e.term.announced = true
	e.setPhase(PhaseLocalDone)
	return nil
}
