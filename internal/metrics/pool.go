// Package metrics provides Prometheus metrics for the converter pool and
// the conversions it serves.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pdfnode"

// PoolSnapshot is what the pool gauges read on every scrape.
type PoolSnapshot struct {
	Idle    int
	Running int
	MaxIdle int
}

var (
	poolSourceMu sync.RWMutex
	poolSource   func() PoolSnapshot

	_ = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "idle_workers",
		Help:      "Pre-warmed workers waiting for a conversion",
	}, func() float64 { return float64(readPool().Idle) })

	_ = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "running_workers",
		Help:      "Workers bound to an in-flight conversion",
	}, func() float64 { return float64(readPool().Running) })

	_ = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "max_idle_workers",
		Help:      "Configured idle target",
	}, func() float64 { return float64(readPool().MaxIdle) })

	workerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "worker_transitions_total",
		Help:      "Worker state transitions",
	}, []string{"from", "to"})
)

// RegisterPool makes the pool gauges report from source. A later call
// replaces the source; nil detaches it.
func RegisterPool(source func() PoolSnapshot) {
	poolSourceMu.Lock()
	defer poolSourceMu.Unlock()
	poolSource = source
}

func readPool() PoolSnapshot {
	poolSourceMu.RLock()
	defer poolSourceMu.RUnlock()
	if poolSource == nil {
		return PoolSnapshot{}
	}
	return poolSource()
}

// RecordWorkerTransition counts one worker state change. An empty from
// state is recorded as "new".
func RecordWorkerTransition(from, to string) {
	if from == "" {
		from = "new"
	}
	workerTransitions.WithLabelValues(from, to).Inc()
}
