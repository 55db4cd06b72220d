// Package metrics exports engine events as Prometheus metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/advect/internal/engine"
	"github.com/roach88/advect/internal/ir"
)

const namespace = "advect"

var phases = []engine.Phase{engine.PhaseRunning, engine.PhaseLocalDone, engine.PhaseGlobalDone}

// Collector owns the metric vectors of one run. Each rank reports
// through the view returned by Rank.
type Collector struct {
	steps       *prometheus.CounterVec
	advanced    *prometheus.CounterVec
	terminated  *prometheus.CounterVec
	sent        *prometheus.CounterVec
	received    *prometheus.CounterVec
	cacheEvents *prometheus.CounterVec
	anomalies   *prometheus.CounterVec
	phase       *prometheus.GaugeVec
	curves      *prometheus.GaugeVec
}

// New creates the vectors and registers them with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "curve_steps_total",
			Help:      "Integration steps taken.",
		}, []string{"rank"}),
		advanced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "curves_advanced_total",
			Help:      "Curves popped from the active queue and advanced.",
		}, []string{"rank"}),
		terminated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "curves_terminated_total",
			Help:      "Curves terminated, by reason.",
		}, []string{"rank", "reason"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages sent, by kind.",
		}, []string{"rank", "kind"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages received, by kind.",
		}, []string{"rank", "kind"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Domain cache events by name.",
		}, []string{"rank", "event"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_anomalies_total",
			Help:      "Unexpected messages that were tolerated.",
		}, []string{"rank", "kind"}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase",
			Help:      "1 for the current driver phase of the rank.",
		}, []string{"rank", "phase"}),
		curves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "curves",
			Help:      "Curves held by the rank, by queue.",
		}, []string{"rank", "queue"}),
	}

	for _, col := range []prometheus.Collector{
		c.steps, c.advanced, c.terminated, c.sent, c.received,
		c.cacheEvents, c.anomalies, c.phase, c.curves,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Rank returns the engine.Metrics view for one rank.
func (c *Collector) Rank(rank int) engine.Metrics {
	r := &rankMetrics{c: c, rank: strconv.Itoa(rank)}
	r.PhaseChanged(engine.PhaseRunning.String())
	return r
}

type rankMetrics struct {
	c    *Collector
	rank string
}

func (r *rankMetrics) CurveAdvanced(steps int) {
	r.c.advanced.WithLabelValues(r.rank).Inc()
	r.c.steps.WithLabelValues(r.rank).Add(float64(steps))
}

func (r *rankMetrics) CurveTerminated(reason string) {
	r.c.terminated.WithLabelValues(r.rank, reason).Inc()
}

func (r *rankMetrics) MessageSent(kind ir.Kind) {
	r.c.sent.WithLabelValues(r.rank, kind.String()).Inc()
}

func (r *rankMetrics) MessageReceived(kind ir.Kind) {
	r.c.received.WithLabelValues(r.rank, kind.String()).Inc()
}

func (r *rankMetrics) CacheEvent(event string) {
	r.c.cacheEvents.WithLabelValues(r.rank, event).Inc()
}

func (r *rankMetrics) Anomaly(kind string) {
	r.c.anomalies.WithLabelValues(r.rank, kind).Inc()
}

func (r *rankMetrics) PhaseChanged(phase string) {
	for _, p := range phases {
		v := 0.0
		if p.String() == phase {
			v = 1
		}
		r.c.phase.WithLabelValues(r.rank, p.String()).Set(v)
	}
}

func (r *rankMetrics) Queues(c engine.Counts) {
	r.c.curves.WithLabelValues(r.rank, "active").Set(float64(c.Active))
	r.c.curves.WithLabelValues(r.rank, "oob").Set(float64(c.OOB))
	r.c.curves.WithLabelValues(r.rank, "terminated").Set(float64(c.Terminated))
}
