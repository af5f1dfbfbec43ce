package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StockOpMetrics counts stock manager operations by outcome.
type StockOpMetrics struct {
	operations *prometheus.CounterVec
	shortfalls *prometheus.CounterVec
}

// NewStockOpMetrics registers the stock operation metrics on the provided registerer.
func NewStockOpMetrics(reg prometheus.Registerer) *StockOpMetrics {
	if reg == nil {
		return &StockOpMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_operations_total",
		Help: "Stock manager operations by operation and outcome.",
	}, []string{"operation", "outcome"})
	shortfalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_shortfalls_total",
		Help: "Reservations or decrements rejected for insufficient stock.",
	}, []string{"operation"})
	reg.MustRegister(operations, shortfalls)
	return &StockOpMetrics{operations: operations, shortfalls: shortfalls}
}

// IncOperation records one completed stock operation.
func (m *StockOpMetrics) IncOperation(operation, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// IncShortfall records one insufficient-stock rejection.
func (m *StockOpMetrics) IncShortfall(operation string) {
	if m == nil || m.shortfalls == nil {
		return
	}
	m.shortfalls.WithLabelValues(normalizeLabel(operation)).Inc()
}
