package txn

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulqrun/crmstore/errors"
)

func TestBeginRejectsNested(t *testing.T) {
	m := NewManager(nil, nil)
	require.NoError(t, m.Begin())

	err := m.Begin()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTransactionActive)

	_, err = m.Commit()
	require.NoError(t, err)

	// Slot is free again after commit.
	assert.NoError(t, m.Begin())
	_, _ = m.Commit()
}

func TestCommitReturnsOperationCount(t *testing.T) {
	m := NewManager(nil, nil)
	require.NoError(t, m.Begin())

	for i := 0; i < 3; i++ {
		m.Register(Operation{Kind: KindCreate, Table: "users", RecordID: "u",
			Compensate: func(context.Context) error { return nil }})
	}

	count, err := m.Commit()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.False(t, m.Active())
}

func TestCommitWithoutTransaction(t *testing.T) {
	m := NewManager(nil, nil)
	_, err := m.Commit()
	assert.ErrorIs(t, err, errors.ErrNoTransaction)
	assert.ErrorIs(t, m.Rollback(context.Background()), errors.ErrNoTransaction)
}

func TestRegisterOutsideTransactionIsIgnored(t *testing.T) {
	m := NewManager(nil, nil)
	m.Register(Operation{Kind: KindCreate, Table: "users", RecordID: "u-1"})
	assert.Equal(t, 0, m.OperationCount())
}

func TestRollbackRunsCompensationsInReverseOrder(t *testing.T) {
	m := NewManager(nil, nil)
	require.NoError(t, m.Begin())

	var order []string
	for _, id := range []string{"first", "second", "third"} {
		id := id
		m.Register(Operation{
			Kind: KindCreate, Table: "t", RecordID: id,
			Compensate: func(context.Context) error {
				order = append(order, id)
				return nil
			},
		})
	}

	require.NoError(t, m.Rollback(context.Background()))
	assert.Equal(t, []string{"third", "second", "first"}, order)
	assert.False(t, m.Active())
}

func TestRollbackContinuesPastFailedCompensation(t *testing.T) {
	m := NewManager(nil, nil)
	require.NoError(t, m.Begin())

	var order []string
	m.Register(Operation{Kind: KindCreate, Table: "t", RecordID: "a",
		Compensate: func(context.Context) error { order = append(order, "a"); return nil }})
	m.Register(Operation{Kind: KindUpdate, Table: "t", RecordID: "b",
		Compensate: func(context.Context) error { return stderrors.New("boom") }})
	m.Register(Operation{Kind: KindDelete, Table: "t", RecordID: "c",
		Compensate: func(context.Context) error { order = append(order, "c"); return nil }})

	err := m.Rollback(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
	// Both surviving compensations still ran, in reverse order.
	assert.Equal(t, []string{"c", "a"}, order)
}

func TestWithTransactionCommitsOnSuccess(t *testing.T) {
	m := NewManager(nil, nil)

	compensated := false
	err := m.WithTransaction(context.Background(), func(ctx context.Context) error {
		m.Register(Operation{Kind: KindCreate, Table: "t", RecordID: "x",
			Compensate: func(context.Context) error { compensated = true; return nil }})
		return nil
	})

	require.NoError(t, err)
	assert.False(t, compensated)
	assert.False(t, m.Active())
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	m := NewManager(nil, nil)

	boom := stderrors.New("boom")
	compensated := false
	err := m.WithTransaction(context.Background(), func(ctx context.Context) error {
		m.Register(Operation{Kind: KindCreate, Table: "t", RecordID: "x",
			Compensate: func(context.Context) error { compensated = true; return nil }})
		return boom
	})

	// The original error surfaces, not the rollback's.
	assert.ErrorIs(t, err, boom)
	assert.True(t, compensated)
	assert.False(t, m.Active())
}

func TestWithTransactionRollsBackOnPanic(t *testing.T) {
	m := NewManager(nil, nil)

	compensated := false
	assert.Panics(t, func() {
		_ = m.WithTransaction(context.Background(), func(ctx context.Context) error {
			m.Register(Operation{Kind: KindCreate, Table: "t", RecordID: "x",
				Compensate: func(context.Context) error { compensated = true; return nil }})
			panic("kaboom")
		})
	})

	assert.True(t, compensated)
	assert.False(t, m.Active())
}
