package migrate

import (
	"context"
	"testing"

	prtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulqrun/crmstore/errors"
	"github.com/fulqrun/crmstore/metric"
	"github.com/fulqrun/crmstore/store"
	"github.com/fulqrun/crmstore/testutil"
)

// marker returns a migration whose Up/Down append their version to trace.
func marker(version int, trace *[]int) Migration {
	return Migration{
		Version:     version,
		Description: "marker",
		Up: func(ctx context.Context, kv store.KV) error {
			*trace = append(*trace, version)
			return nil
		},
		Down: func(ctx context.Context, kv store.KV) error {
			*trace = append(*trace, -version)
			return nil
		},
	}
}

func newManager(t *testing.T, kv store.KV) *Manager {
	t.Helper()
	m, err := NewManager(kv)
	require.NoError(t, err)
	return m
}

func TestMigrateRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := metric.NewMetrics()
	m, err := NewManager(testutil.NewMemoryKV(), WithMetrics(metrics))
	require.NoError(t, err)
	var trace []int

	require.NoError(t, m.Register(marker(1, &trace)))
	require.NoError(t, m.Register(marker(2, &trace)))
	applied, err := m.Migrate(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, applied)

	assert.Equal(t, 2.0, prtestutil.ToFloat64(metrics.MigrationsApplied))
	assert.Equal(t, 2.0, prtestutil.ToFloat64(metrics.SchemaVersion))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	m := newManager(t, testutil.NewMemoryKV())
	var trace []int

	require.NoError(t, m.Register(marker(1, &trace)))
	err := m.Register(marker(1, &trace))
	assert.ErrorIs(t, err, errors.ErrDuplicateVersion)
}

func TestRegisterRejectsInvalid(t *testing.T) {
	m := newManager(t, testutil.NewMemoryKV())
	var trace []int

	assert.Error(t, m.Register(marker(0, &trace)))
	assert.Error(t, m.Register(marker(-3, &trace)))
	assert.Error(t, m.Register(Migration{Version: 2}))
}

func TestMigrateAppliesInAscendingOrder(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, testutil.NewMemoryKV())
	var trace []int

	// Registered out of order on purpose.
	require.NoError(t, m.Register(marker(3, &trace)))
	require.NoError(t, m.Register(marker(1, &trace)))
	require.NoError(t, m.Register(marker(2, &trace)))

	applied, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, applied)
	assert.Equal(t, []int{1, 2, 3}, trace)

	current, err := m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, current)
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, testutil.NewMemoryKV())
	var trace []int
	require.NoError(t, m.Register(marker(1, &trace)))

	applied, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	applied, err = m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied, "re-run must be a no-op")
	assert.Equal(t, []int{1}, trace)
}

func TestMigrateResumesFromPersistedHistory(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryKV()
	var trace []int

	first := newManager(t, kv)
	require.NoError(t, first.Register(marker(1, &trace)))
	_, err := first.Migrate(ctx)
	require.NoError(t, err)

	// A fresh manager over the same substrate sees the applied version.
	second := newManager(t, kv)
	require.NoError(t, second.Register(marker(1, &trace)))
	require.NoError(t, second.Register(marker(2, &trace)))

	applied, err := second.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, []int{1, 2}, trace)
}

func TestMigrateStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, testutil.NewMemoryKV())
	var trace []int

	require.NoError(t, m.Register(marker(1, &trace)))
	require.NoError(t, m.Register(Migration{
		Version:     2,
		Description: "broken",
		Up: func(ctx context.Context, kv store.KV) error {
			return errors.ErrSubstrateUnavailable
		},
	}))
	require.NoError(t, m.Register(marker(3, &trace)))

	applied, err := m.Migrate(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMigrationIncomplete)
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, 1, applied)
	assert.Equal(t, []int{1}, trace, "migration 3 must not run after 2 fails")

	// History still records the successful prefix.
	current, err := m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, current)
}

func TestRollbackDescendsToTarget(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, testutil.NewMemoryKV())
	var trace []int

	for v := 1; v <= 3; v++ {
		require.NoError(t, m.Register(marker(v, &trace)))
	}
	_, err := m.Migrate(ctx)
	require.NoError(t, err)
	trace = nil

	reverted, err := m.Rollback(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, reverted)
	assert.Equal(t, []int{-3, -2}, trace, "down migrations run in descending order")

	current, err := m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, current)
}

func TestRollbackRejectsBadTargets(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, testutil.NewMemoryKV())
	var trace []int
	require.NoError(t, m.Register(marker(1, &trace)))
	_, err := m.Migrate(ctx)
	require.NoError(t, err)

	_, err = m.Rollback(ctx, -1)
	assert.ErrorIs(t, err, errors.ErrInvalidTarget)

	_, err = m.Rollback(ctx, 5)
	assert.ErrorIs(t, err, errors.ErrInvalidTarget)

	_, err = m.Rollback(ctx, 1)
	assert.ErrorIs(t, err, errors.ErrInvalidTarget, "target must be strictly below current")

	cur, err := m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cur)
	assert.Equal(t, []int{1}, trace, "rejected targets must not run any down migration")
}

func TestRollbackStopsAtIrreversibleMigration(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, testutil.NewMemoryKV())
	var trace []int

	require.NoError(t, m.Register(Migration{
		Version:     1,
		Description: "one-way",
		Up:          func(ctx context.Context, kv store.KV) error { return nil },
	}))
	require.NoError(t, m.Register(marker(2, &trace)))
	_, err := m.Migrate(ctx)
	require.NoError(t, err)

	reverted, err := m.Rollback(ctx, 0)
	require.Error(t, err)
	assert.Equal(t, 1, reverted, "reversible tail reverts before the stop")

	current, err := m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, current)
}

func TestNeedsMigrationAndStatus(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, testutil.NewMemoryKV())
	var trace []int
	require.NoError(t, m.Register(marker(1, &trace)))
	require.NoError(t, m.Register(marker(2, &trace)))

	pending, err := m.NeedsMigration(ctx)
	require.NoError(t, err)
	assert.True(t, pending)

	_, err = m.Migrate(ctx)
	require.NoError(t, err)

	pending, err = m.NeedsMigration(ctx)
	require.NoError(t, err)
	assert.False(t, pending)

	statuses, err := m.StatusList(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	for _, s := range statuses {
		assert.True(t, s.Applied)
		assert.NotEmpty(t, s.AppliedAt)
	}
}
