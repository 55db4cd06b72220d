package engine

import "github.com/roach88/advect/internal/ir"

// Metrics receives engine events for export.
// Calls are made from the driver goroutine only.
type Metrics interface {
	CurveAdvanced(steps int)
	CurveTerminated(reason string)
	MessageSent(kind ir.Kind)
	MessageReceived(kind ir.Kind)
	CacheEvent(event string)
	Anomaly(kind string)
	PhaseChanged(phase string)
	Queues(c Counts)
}

// Cache event names passed to Metrics.CacheEvent.
const (
	CacheLocalLoad = "local_load"
	CacheInstall   = "install"
	CacheMiss      = "miss"
)

type nopMetrics struct{}

func (nopMetrics) CurveAdvanced(int)       {}
func (nopMetrics) CurveTerminated(string)  {}
func (nopMetrics) MessageSent(ir.Kind)     {}
func (nopMetrics) MessageReceived(ir.Kind) {}
func (nopMetrics) CacheEvent(string)       {}
func (nopMetrics) Anomaly(string)          {}
func (nopMetrics) PhaseChanged(string)     {}
func (nopMetrics) Queues(Counts)           {}
