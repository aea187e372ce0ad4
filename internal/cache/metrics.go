package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
	OpIncr   = "incr"

	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// OperationCounter counts cache operations by operation and outcome.
type OperationCounter struct {
	ops *prometheus.CounterVec
}

func NewOperationCounter(reg prometheus.Registerer) *OperationCounter {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_operations_total",
		Help: "Cache operations by operation and result.",
	}, []string{"operation", "result"})

	if reg != nil {
		reg.MustRegister(ops)
	}
	return &OperationCounter{ops: ops}
}

func (m *OperationCounter) Record(operation, result string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(operation, result).Inc()
}

func (m *OperationCounter) Collector() *prometheus.CounterVec {
	return m.ops
}
