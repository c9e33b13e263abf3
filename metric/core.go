// Package metric provides Prometheus metrics for the CRM data layer.
// A single Registry owns the core metric set; components receive the
// *Metrics handle and record through nil-safe helpers so metrics stay
// optional in tests.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the core data-layer metrics.
type Metrics struct {
	// Repository operations
	OperationsTotal *prometheus.CounterVec // labels: table, operation
	OperationErrors *prometheus.CounterVec // labels: table, operation, class
	IndexWarnings   *prometheus.CounterVec // labels: table, field
	RecordCount     *prometheus.GaugeVec   // labels: table

	// Transactions
	TransactionsTotal    *prometheus.CounterVec // labels: outcome
	CompensationFailures prometheus.Counter

	// Migrations
	MigrationsApplied prometheus.Counter
	SchemaVersion     prometheus.Gauge
}

// NewMetrics creates the core metric set (unregistered).
func NewMetrics() *Metrics {
	return &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmstore_operations_total",
				Help: "Repository operations by table and operation",
			},
			[]string{"table", "operation"},
		),
		OperationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmstore_operation_errors_total",
				Help: "Failed repository operations by table, operation and error class",
			},
			[]string{"table", "operation", "class"},
		),
		IndexWarnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmstore_index_warnings_total",
				Help: "Index maintenance failures logged as warnings (degraded findBy completeness)",
			},
			[]string{"table", "field"},
		),
		RecordCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crmstore_records",
				Help: "Record count per table as of the last health sweep",
			},
			[]string{"table"},
		),
		TransactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmstore_transactions_total",
				Help: "Completed transactions by outcome",
			},
			[]string{"outcome"},
		),
		CompensationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crmstore_compensation_failures_total",
				Help: "Rollback compensating actions that themselves failed",
			},
		),
		MigrationsApplied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crmstore_migrations_applied_total",
				Help: "Migrations applied since process start",
			},
		),
		SchemaVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crmstore_schema_version",
				Help: "Current migration version",
			},
		),
	}
}

// Nil-safe recording helpers. Components hold a possibly-nil *Metrics.

// RecordOperation counts one repository operation.
func (m *Metrics) RecordOperation(table, operation string) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(table, operation).Inc()
}

// RecordOperationError counts a failed repository operation.
func (m *Metrics) RecordOperationError(table, operation, class string) {
	if m == nil {
		return
	}
	m.OperationErrors.WithLabelValues(table, operation, class).Inc()
}

// RecordIndexWarning counts an index maintenance failure.
func (m *Metrics) RecordIndexWarning(table, field string) {
	if m == nil {
		return
	}
	m.IndexWarnings.WithLabelValues(table, field).Inc()
}

// SetRecordCount updates the per-table record gauge.
func (m *Metrics) SetRecordCount(table string, count int) {
	if m == nil {
		return
	}
	m.RecordCount.WithLabelValues(table).Set(float64(count))
}

// RecordTransaction counts a finished transaction ("committed" or "rolled_back").
func (m *Metrics) RecordTransaction(outcome string) {
	if m == nil {
		return
	}
	m.TransactionsTotal.WithLabelValues(outcome).Inc()
}

// RecordCompensationFailure counts a failed compensating action.
func (m *Metrics) RecordCompensationFailure() {
	if m == nil {
		return
	}
	m.CompensationFailures.Inc()
}

// RecordMigrationApplied counts an applied migration and moves the version gauge.
func (m *Metrics) RecordMigrationApplied(version int) {
	if m == nil {
		return
	}
	m.MigrationsApplied.Inc()
	m.SchemaVersion.Set(float64(version))
}

// SetSchemaVersion updates the version gauge without counting an application.
func (m *Metrics) SetSchemaVersion(version int) {
	if m == nil {
		return
	}
	m.SchemaVersion.Set(float64(version))
}
