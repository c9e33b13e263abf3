// Package txn implements compensating-action transactions over the KV
// substrate. The substrate offers single-key atomicity only, so this is a
// saga, not ACID: each mutation takes effect as it executes and registers an
// inverse action; rollback replays the inverses in reverse order.
//
// Known limitation: there is no isolation. Concurrent readers can observe
// intermediate state while a transaction is in flight, and rollback is
// best-effort: a failed compensation is logged and counted, never retried.
package txn

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fulqrun/crmstore/errors"
	"github.com/fulqrun/crmstore/metric"
)

// State tracks the transaction slot lifecycle.
type State int

const (
	// StateIdle means no transaction is active.
	StateIdle State = iota
	// StateActive means a transaction is collecting operations.
	StateActive
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Kind identifies the mutation an operation logged.
type Kind string

// Operation kinds.
const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Operation is one logged mutation plus its compensating action.
type Operation struct {
	Kind     Kind
	Table    string
	RecordID string
	// Compensate undoes the mutation: delete for a create, restore the
	// previous value for an update, recreate for a delete.
	Compensate func(ctx context.Context) error
}

// Manager owns the process-wide transaction slot. Only one transaction may
// be active at a time; nesting is not supported and Begin while active is a
// usage error.
type Manager struct {
	mu      sync.Mutex
	state   State
	ops     []Operation
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewManager creates a transaction manager.
func NewManager(logger *slog.Logger, metrics *metric.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		state:   StateIdle,
		logger:  logger,
		metrics: metrics,
	}
}

// Begin opens the transaction slot. Fails when one is already active.
func (m *Manager) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateActive {
		return errors.WrapInvalid(errors.ErrTransactionActive, "txn", "Begin", "open transaction")
	}
	m.state = StateActive
	m.ops = nil
	return nil
}

// Active reports whether a transaction is collecting operations.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateActive
}

// Register logs a mutation and its compensating action. Calls outside an
// active transaction are ignored: repositories register unconditionally and
// the slot decides whether anything is being collected.
func (m *Manager) Register(op Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return
	}
	m.ops = append(m.ops, op)
}

// OperationCount returns the number of logged operations.
func (m *Manager) OperationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ops)
}

// Commit clears the transaction state and returns the count of logged
// operations. Operations already took effect individually as they executed,
// the substrate has no multi-key atomicity, so there is nothing to re-apply.
func (m *Manager) Commit() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return 0, errors.WrapInvalid(errors.ErrNoTransaction, "txn", "Commit", "commit transaction")
	}

	count := len(m.ops)
	m.state = StateIdle
	m.ops = nil
	m.metrics.RecordTransaction("committed")
	return count, nil
}

// Rollback executes every registered compensating action in reverse order of
// registration, so dependent writes unwind before whatever they depended on.
// A compensation's own failure is logged and counted but does not stop the
// remaining rollbacks. The returned error joins compensation failures;
// callers surface the original triggering error, not this one.
func (m *Manager) Rollback(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNoTransaction, "txn", "Rollback", "roll back transaction")
	}
	ops := m.ops
	m.state = StateIdle
	m.ops = nil
	m.mu.Unlock()

	var failures []error
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if op.Compensate == nil {
			continue
		}
		if err := op.Compensate(ctx); err != nil {
			m.logger.Warn("compensating action failed",
				"kind", op.Kind,
				"table", op.Table,
				"record_id", op.RecordID,
				"error", err)
			m.metrics.RecordCompensationFailure()
			failures = append(failures, fmt.Errorf("%s %s/%s: %w", op.Kind, op.Table, op.RecordID, err))
		}
	}

	m.metrics.RecordTransaction("rolled_back")
	if len(failures) > 0 {
		return errors.WrapTransient(stderrors.Join(failures...), "txn", "Rollback", "compensating actions")
	}
	return nil
}

// WithTransaction runs fn inside a transaction: begin, fn, commit on
// success; rollback on error or panic. The error from fn is the one
// returned; rollback failures are logged, never masked over it.
func (m *Manager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := m.Begin(); err != nil {
		return err
	}

	var done bool
	defer func() {
		if done {
			return
		}
		// fn panicked; unwind before re-panicking.
		if rbErr := m.Rollback(ctx); rbErr != nil {
			m.logger.Error("rollback after panic reported failures", "error", rbErr)
		}
	}()

	if err := fn(ctx); err != nil {
		done = true
		if rbErr := m.Rollback(ctx); rbErr != nil {
			m.logger.Error("rollback reported failures", "error", rbErr, "cause", err)
		}
		return err
	}

	done = true
	count, err := m.Commit()
	if err != nil {
		return err
	}
	m.logger.Debug("transaction committed", "operations", count)
	return nil
}
