// Package metrics exposes ledger and vehicle-check counters on a private
// prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Collector is safe to use as a nil pointer; every method is then a no-op.
type Collector struct {
	registry         *prometheus.Registry
	ledgerOperations *prometheus.CounterVec
	ledgerAmount     *prometheus.CounterVec
	ledgerDuration   *prometheus.HistogramVec
	vehicleChecks    *prometheus.CounterVec
	paymentTopUps    *prometheus.CounterVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		ledgerOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger balance operations by operation and result",
		}, []string{"operation", "result"}),
		ledgerAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_amount_minor_units_total",
			Help: "Sum of applied ledger amounts in minor currency units",
		}, []string{"direction"}),
		ledgerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Time taken to apply a ledger operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		vehicleChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vehicle_checks_total",
			Help: "Vehicle checks by service type and result",
		}, []string{"service_type", "result"}),
		paymentTopUps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_topups_total",
			Help: "Card top-ups by result",
		}, []string{"result"}),
	}
}

// RecordLedgerOperation counts one ledger operation. amount and direction are
// only recorded on success.
func (c *Collector) RecordLedgerOperation(operation, direction string, amount int64, duration time.Duration, err error) {
	if c == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	c.ledgerOperations.WithLabelValues(operation, result).Inc()
	c.ledgerDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err == nil && direction != "" {
		c.ledgerAmount.WithLabelValues(direction).Add(float64(amount))
	}
}

func (c *Collector) RecordVehicleCheck(serviceType string, err error) {
	if c == nil {
		return
	}
	c.vehicleChecks.WithLabelValues(serviceType, resultOf(err)).Inc()
}

func (c *Collector) RecordTopUp(err error) {
	if c == nil {
		return
	}
	c.paymentTopUps.WithLabelValues(resultOf(err)).Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func resultOf(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
