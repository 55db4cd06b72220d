package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/advect/internal/channel"
	"github.com/roach88/advect/internal/directory"
	"github.com/roach88/advect/internal/ir"
)

// Solver advances a curve inside one resident domain.
type Solver interface {
	Advance(state ir.State, payload ir.Payload, maxSteps int) (ir.Outcome, error)
}

// Mesh loads domain payloads owned by this rank.
type Mesh interface {
	Load(key ir.DomainKey) (ir.Payload, error)
}

// Locator maps a curve state to the domain containing it.
// inside is false when the state lies outside the mesh.
type Locator interface {
	Locate(state ir.State) (key ir.DomainKey, inside bool)
}

// Collaborators are the external dependencies of one Engine.
type Collaborators struct {
	Directory *directory.Directory
	Channel   channel.Channel
	Solver    Solver
	Mesh      Mesh
	Locator   Locator
}

// Phase is the driver state of one rank.
type Phase int

const (
	PhaseRunning Phase = iota
	PhaseLocalDone
	PhaseGlobalDone
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "RUNNING"
	case PhaseLocalDone:
		return "LOCAL_DONE"
	case PhaseGlobalDone:
		return "GLOBAL_DONE"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Stats are per-rank counters, readable after the run.
type Stats struct {
	Rank                 int   `json:"rank"`
	Seeded               int   `json:"seeded"`
	Iterations           int64 `json:"iterations"`
	CurvesAdvanced       int   `json:"curves_advanced"`
	Steps                int   `json:"steps"`
	Terminated           int   `json:"terminated"`
	RequestsSent         int   `json:"requests_sent"`
	RequestsServed       int   `json:"requests_served"`
	ServedAfterLocalDone int   `json:"served_after_local_done"`
	PayloadsInstalled    int   `json:"payloads_installed"`
	LocalLoads           int   `json:"local_loads"`
	Evictions            int   `json:"evictions"`
	DoneSent             int   `json:"done_sent"`
	DoneReceived         int   `json:"done_received"`
	Anomalies            int   `json:"anomalies"`
}

// Engine advects the curves owned by one rank.
//
// Step and Run must be called from a single goroutine. All state (cache,
// pending set, queues, termination bookkeeping) belongs to the instance,
// so engines in one process never share anything but the channel.
type Engine struct {
	rank    int
	dir     *directory.Directory
	ch      channel.Channel
	solver  Solver
	mesh    Mesh
	locator Locator

	logger  *slog.Logger
	metrics Metrics
	pattern Pattern
	clock   *Clock
	limit   stepLimit

	cacheLimit  int
	patternName string

	curves *curveSet
	cache  *domainCache
	term   *terminationDetector
	phase  Phase
	seeded int
	stats  Stats

	// err is sticky: once the driver fails, every later Step returns it.
	err error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the base logger. The engine binds rank to it.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithStepBudget sets the solver steps per curve per iteration.
func WithStepBudget(n int) Option {
	return func(e *Engine) { e.limit.perIteration = n }
}

// WithMaxCurveSteps terminates curves after n steps. Zero disables the limit.
func WithMaxCurveSteps(n int) Option {
	return func(e *Engine) { e.limit.perCurve = n }
}

// WithCacheLimit bounds the number of resident domains. Zero is unbounded.
func WithCacheLimit(n int) Option {
	return func(e *Engine) { e.cacheLimit = n }
}

// WithPattern selects the communication pattern by name.
func WithPattern(name string) Option {
	return func(e *Engine) { e.patternName = name }
}

// New validates the collaborators and builds an engine for the rank of
// c.Channel. Every problem is reported as a CONFIGURATION error before
// anything runs.
func New(c Collaborators, opts ...Option) (*Engine, error) {
	switch {
	case c.Directory == nil:
		return nil, NewConfigurationError("missing rank directory")
	case c.Channel == nil:
		return nil, NewConfigurationError("missing message channel")
	case c.Solver == nil:
		return nil, NewConfigurationError("missing solver collaborator")
	case c.Mesh == nil:
		return nil, NewConfigurationError("missing mesh provider collaborator")
	case c.Locator == nil:
		return nil, NewConfigurationError("missing locator collaborator")
	}
	if c.Channel.Size() != c.Directory.Ranks() {
		return nil, NewConfigurationError("channel connects %d ranks, directory partitions over %d",
			c.Channel.Size(), c.Directory.Ranks())
	}

	e := &Engine{
		rank:    c.Channel.Rank(),
		dir:     c.Directory,
		ch:      c.Channel,
		solver:  c.Solver,
		mesh:    c.Mesh,
		locator: c.Locator,
		logger:  slog.Default(),
		metrics: nopMetrics{},
		clock:   NewClock(),
		limit:   stepLimit{perIteration: DefaultStepBudget},
		curves:  newCurveSet(),
		term:    newTerminationDetector(c.Directory.Ranks()),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("rank", e.rank)
	e.stats.Rank = e.rank

	if e.limit.perIteration <= 0 {
		return nil, e.configError("step budget must be positive, got %d", e.limit.perIteration)
	}
	if e.limit.perCurve < 0 {
		return nil, e.configError("max curve steps must not be negative, got %d", e.limit.perCurve)
	}
	cache, err := newDomainCache(e.cacheLimit)
	if err != nil {
		return nil, e.configError("%v", err)
	}
	e.cache = cache

	pattern, err := LookupPattern(e.patternName)
	if err != nil {
		var ee *Error
		if errors.As(err, &ee) {
			ee.Rank = e.rank
		}
		return nil, err
	}
	e.pattern = pattern
	return e, nil
}

func (e *Engine) configError(format string, args ...any) *Error {
	err := NewConfigurationError(format, args...)
	err.Rank = e.rank
	return err
}

// Rank returns the rank this engine drives.
func (e *Engine) Rank() int { return e.rank }

// Pattern returns the name of the communication pattern.
func (e *Engine) Pattern() string { return e.pattern.Name() }

// Phase returns the current driver state.
func (e *Engine) Phase() Phase { return e.phase }

// Counts returns the current queue sizes.
func (e *Engine) Counts() Counts { return e.curves.counts() }

// Stats returns a copy of the counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Iterations = e.clock.Current()
	s.Evictions = e.cache.evictions
	return s
}

// Err returns the error that stopped the engine, if any.
func (e *Engine) Err() error { return e.err }

// Seed creates one curve per seed. It must be called before the first
// Step. Seeds outside the mesh become terminated curves.
func (e *Engine) Seed(seeds []ir.Seed) error {
	if e.clock.Current() > 0 {
		return e.configError("seeding after the driver loop started")
	}
	ids := make(map[ir.CurveID]struct{}, len(seeds))
	for i := range e.curves.curves {
		ids[e.curves.curves[i].ID] = struct{}{}
	}
	for _, s := range seeds {
		if _, dup := ids[s.ID]; dup {
			return e.configError("duplicate curve id %d", s.ID)
		}
		if !s.Pos.IsFinite() {
			return e.configError("seed %d has a non-finite position", s.ID)
		}
		ids[s.ID] = struct{}{}
	}

	for _, s := range seeds {
		h := e.curves.add(ir.Curve{
			ID:     s.ID,
			State:  ir.State{Pos: s.Pos, Time: s.Time},
			Status: ir.StatusOK,
		})
		e.seeded++
		e.stats.Seeded++

		key, inside := e.locator.Locate(e.curves.get(h).State)
		if !inside {
			if err := e.terminate(h, ir.ReasonOutsideMesh); err != nil {
				return e.stamp(err)
			}
			continue
		}
		e.curves.get(h).Domain = key
		if err := e.place(h); err != nil {
			return e.stamp(err)
		}
	}
	e.logger.Info("curves seeded", "count", len(seeds), "active", e.curves.activeLen(), "oob", e.curves.oobLen)
	return nil
}

// Step runs one driver iteration. It is a no-op once the rank reached
// GLOBAL_DONE.
func (e *Engine) Step(ctx context.Context) error {
	if e.err != nil {
		return e.err
	}
	if e.phase == PhaseGlobalDone {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	iter := e.clock.Next()
	if err := e.pattern.Iterate(ctx, e); err != nil {
		e.err = e.stamp(err)
		e.logger.Error("engine stopped", "iteration", iter, "phase", e.phase, "error", e.err)
		return e.err
	}
	e.metrics.Queues(e.curves.counts())
	return nil
}

// Run steps the engine until GLOBAL_DONE, a failure or ctx cancellation.
// With no local work it idles until the channel signals a message.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "pattern", e.pattern.Name(), "curves", e.seeded)

	for {
		if err := e.Step(ctx); err != nil {
			return err
		}
		if e.phase == PhaseGlobalDone {
			return nil
		}
		if e.curves.activeLen() > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled", "phase", e.phase)
			return ctx.Err()
		case <-e.ch.Ready():
		}
	}
}

// TakeTerminated moves the terminated curves out of the engine.
// Each curve is returned exactly once across calls.
func (e *Engine) TakeTerminated() []ir.Curve {
	return e.curves.take()
}

// Resume continues a partially executed pass, if the pattern supports it.
func (e *Engine) Resume() error {
	return e.pattern.Resume(e)
}

// NeedsNextTimeStep reports whether another time step is required, if
// the pattern can answer mid-run.
func (e *Engine) NeedsNextTimeStep() (bool, error) {
	return e.pattern.NeedsNextTimeStep(e)
}

// IsResident reports whether the payload for key is cached on this rank.
func (e *Engine) IsResident(key ir.DomainKey) bool {
	return e.cache.isResident(key)
}

// IsPending reports whether a request for key is outstanding.
func (e *Engine) IsPending(key ir.DomainKey) bool {
	return e.cache.isPending(key)
}

// RequestDomain makes key resident eventually. It never blocks: resident
// and pending keys are no-ops, keys owned by this rank are loaded from
// the mesh, others are requested from their owner.
func (e *Engine) RequestDomain(key ir.DomainKey) error {
	if e.cache.isResident(key) || e.cache.isPending(key) {
		return nil
	}
	owner, err := e.owner(key)
	if err != nil {
		return err
	}
	if owner == e.rank {
		_, err := e.loadLocal(key)
		return err
	}
	return e.requestFrom(owner, key)
}

func (e *Engine) owner(key ir.DomainKey) (int, error) {
	owner, err := e.dir.Owner(key)
	if err != nil {
		return 0, &Error{Code: CodeInvariant, Message: "domain has no owner", Rank: e.rank, Key: &key, Err: err}
	}
	return owner, nil
}

// place moves a stepping curve to Active when its domain is available,
// and otherwise parks it in OOB with a request outstanding.
func (e *Engine) place(h handle) error {
	c := e.curves.get(h)
	key := c.Domain
	if e.cache.isResident(key) {
		return e.activate(h)
	}

	owner, err := e.owner(key)
	if err != nil {
		return err
	}
	if owner == e.rank {
		if _, err := e.loadLocal(key); err != nil {
			e.logger.Warn("local domain unavailable", "curve", c.ID, "key", key, "error", err)
			return e.terminate(h, ir.ReasonUnavailable)
		}
		return e.activate(h)
	}

	if err := e.curves.pushOOB(h); err != nil {
		return err
	}
	return e.requestFrom(owner, key)
}

// activate appends a stepping curve to Active and pins its domain until
// the curve is popped again.
func (e *Engine) activate(h handle) error {
	c := e.curves.get(h)
	if err := e.curves.pushActive(h); err != nil {
		return err
	}
	c.Status = ir.StatusOK
	e.cache.pin(c.Domain)
	return nil
}

// loadLocal installs a domain this rank owns straight from the mesh.
func (e *Engine) loadLocal(key ir.DomainKey) (ir.Payload, error) {
	payload, err := e.mesh.Load(key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	e.cache.install(key, payload)
	e.stats.LocalLoads++
	e.metrics.CacheEvent(CacheLocalLoad)
	e.logger.Debug("domain loaded locally", "key", key, "bytes", len(payload))
	return payload, nil
}

// requestFrom sends a DatasetRequest unless one is outstanding.
func (e *Engine) requestFrom(owner int, key ir.DomainKey) error {
	if !e.cache.markPending(key) {
		return nil
	}
	if err := e.send(owner, ir.NewDatasetRequest(e.rank, owner, key)); err != nil {
		return err
	}
	e.stats.RequestsSent++
	return nil
}

func (e *Engine) terminate(h handle, reason string) error {
	c := e.curves.get(h)
	c.Status = ir.StatusTerminated
	c.Reason = reason
	if err := e.curves.terminate(h); err != nil {
		return err
	}
	e.stats.Terminated++
	e.metrics.CurveTerminated(reason)
	e.logger.Debug("curve terminated", "curve", c.ID, "key", c.Domain, "steps", c.StepCount, "reason", reason)
	return nil
}

func (e *Engine) send(to int, msg ir.Message) error {
	if err := e.ch.Send(to, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg, err)
	}
	e.metrics.MessageSent(msg.Kind)
	e.logger.Debug("message sent", "msg", msg)
	return nil
}

// anomaly logs and counts a protocol error. Anomalies never stop the run.
func (e *Engine) anomaly(kind string, err *Error) {
	e.stats.Anomalies++
	e.metrics.Anomaly(kind)
	e.logger.Warn("protocol anomaly", "kind", kind, "error", err)
}

func (e *Engine) setPhase(p Phase) {
	if p == e.phase {
		return
	}
	e.logger.Info("phase transition", "from", e.phase, "to", p, "iteration", e.clock.Current())
	e.phase = p
	e.metrics.PhaseChanged(p.String())
}

func (e *Engine) checkConservation() error {
	counts := e.curves.counts()
	if counts.Stepping != 0 {
		return invariantError(e.rank, "%d curves left in the stepping slot", counts.Stepping)
	}
	if counts.Total() != e.seeded {
		err := invariantError(e.rank, "curve conservation violated: %d accounted, %d seeded", counts.Total(), e.seeded)
		err.Details = map[string]string{
			"active":     fmt.Sprint(counts.Active),
			"oob":        fmt.Sprint(counts.OOB),
			"terminated": fmt.Sprint(counts.Terminated),
			"taken":      fmt.Sprint(counts.Taken),
		}
		return err
	}
	return nil
}

// stamp fills in the rank of errors raised below the engine.
func (e *Engine) stamp(err error) error {
	var ee *Error
	if errors.As(err, &ee) && ee.Rank < 0 {
		ee.Rank = e.rank
	}
	return err
}
