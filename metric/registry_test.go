package metric

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryRegistersCoreMetrics(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r.Metrics)

	r.Metrics.RecordOperation("users", "create")
	r.Metrics.RecordOperation("users", "create")
	r.Metrics.RecordIndexWarning("contacts", "company_id")

	assert.Equal(t, 2.0,
		testutil.ToFloat64(r.Metrics.OperationsTotal.WithLabelValues("users", "create")))
	assert.Equal(t, 1.0,
		testutil.ToFloat64(r.Metrics.IndexWarnings.WithLabelValues("contacts", "company_id")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOperation("users", "create")
		m.RecordOperationError("users", "create", "invalid")
		m.RecordIndexWarning("users", "email")
		m.SetRecordCount("users", 3)
		m.RecordTransaction("committed")
		m.RecordCompensationFailure()
		m.RecordMigrationApplied(2)
		m.SetSchemaVersion(2)
	})
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "crm_test_counter", Help: "test"})

	require.NoError(t, r.Register("store", "test_counter", c))
	assert.Error(t, r.Register("store", "test_counter", c))

	assert.True(t, r.Unregister("store", "test_counter"))
	assert.False(t, r.Unregister("store", "test_counter"))
}

func TestHandlerServesExposition(t *testing.T) {
	r := NewRegistry()
	r.Metrics.SetSchemaVersion(3)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "crmstore_schema_version 3")
}
