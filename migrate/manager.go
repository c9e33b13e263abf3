// Package migrate versions the stored data layout. Migrations are
// registered in code, applied strictly ascending, and recorded in a
// history document on the substrate so every environment knows exactly
// which transformations its data has been through.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/fulqrun/crmstore/errors"
	"github.com/fulqrun/crmstore/metric"
	"github.com/fulqrun/crmstore/store"
)

// Func transforms stored data from one schema version to the next (or back).
// Migrations work on the raw substrate: they predate any typed view of the
// records they rewrite.
type Func func(ctx context.Context, kv store.KV) error

// Migration pairs a version number with its forward and reverse transforms.
// Down may be nil for irreversible migrations.
type Migration struct {
	Version     int
	Description string
	Up          Func
	Down        Func
}

// historyEntry is one applied migration in the persisted history document.
type historyEntry struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
	AppliedAt   string `json:"applied_at"`
}

// Manager registers migrations and applies the pending ones in order.
type Manager struct {
	kv         store.KV
	migrations []Migration
	logger     *slog.Logger
	metrics    *metric.Metrics
	nowFn      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics attaches operational metrics.
func WithMetrics(mx *metric.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithClock overrides the applied-at timestamp source.
func WithClock(nowFn func() time.Time) Option {
	return func(m *Manager) { m.nowFn = nowFn }
}

// NewManager creates a migration manager over the substrate.
func NewManager(kv store.KV, opts ...Option) (*Manager, error) {
	if kv == nil {
		return nil, errors.WrapFatal(errors.ErrInvalidConfig, "migrate", "NewManager", "substrate required")
	}
	m := &Manager{
		kv:     kv,
		logger: slog.Default(),
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Register adds a migration, keeping the set sorted by version. Versions
// must be positive and unique; registration order does not matter.
func (m *Manager) Register(mig Migration) error {
	if mig.Version <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "migrate", "Register", "version must be positive")
	}
	if mig.Up == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "migrate", "Register", "up function required")
	}
	for _, existing := range m.migrations {
		if existing.Version == mig.Version {
			return errors.WrapInvalid(errors.ErrDuplicateVersion, "migrate", "Register", "register migration")
		}
	}
	m.migrations = append(m.migrations, mig)
	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})
	return nil
}

// CurrentVersion reads the highest applied version from the history
// document. A missing history means version 0.
func (m *Manager) CurrentVersion(ctx context.Context) (int, error) {
	history, err := m.loadHistory(ctx)
	if err != nil {
		return 0, err
	}
	if len(history) == 0 {
		return 0, nil
	}
	return history[len(history)-1].Version, nil
}

// LatestVersion returns the highest registered version, or 0 when none.
func (m *Manager) LatestVersion() int {
	if len(m.migrations) == 0 {
		return 0
	}
	return m.migrations[len(m.migrations)-1].Version
}

// NeedsMigration reports whether registered migrations are still pending.
func (m *Manager) NeedsMigration(ctx context.Context) (bool, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return false, err
	}
	return current < m.LatestVersion(), nil
}

// Status lists every registered migration with its applied state.
type Status struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
	Applied     bool   `json:"applied"`
	AppliedAt   string `json:"applied_at,omitempty"`
}

// StatusList reports per-migration applied state, ordered by version.
func (m *Manager) StatusList(ctx context.Context) ([]Status, error) {
	history, err := m.loadHistory(ctx)
	if err != nil {
		return nil, err
	}
	applied := make(map[int]historyEntry, len(history))
	for _, entry := range history {
		applied[entry.Version] = entry
	}
	out := make([]Status, 0, len(m.migrations))
	for _, mig := range m.migrations {
		s := Status{Version: mig.Version, Description: mig.Description}
		if entry, ok := applied[mig.Version]; ok {
			s.Applied = true
			s.AppliedAt = entry.AppliedAt
		}
		out = append(out, s)
	}
	return out, nil
}

// Migrate applies every pending migration in ascending order. Each success
// is persisted to the history document before the next migration runs, so
// an interrupted run resumes where it stopped. The first failure aborts the
// run; the database may be mid-version and the error is fatal for startup.
func (m *Manager) Migrate(ctx context.Context) (int, error) {
	history, err := m.loadHistory(ctx)
	if err != nil {
		return 0, err
	}
	current := 0
	if len(history) > 0 {
		current = history[len(history)-1].Version
	}

	applied := 0
	for _, mig := range m.migrations {
		if mig.Version <= current {
			continue
		}
		m.logger.Info("applying migration",
			"version", mig.Version, "description", mig.Description)

		if err := mig.Up(ctx, m.kv); err != nil {
			return applied, errors.WrapFatal(
				fmt.Errorf("%w: %w", errors.ErrMigrationIncomplete, err),
				"migrate", "Migrate", "apply migration")
		}

		history = append(history, historyEntry{
			Version:     mig.Version,
			Description: mig.Description,
			AppliedAt:   m.nowFn().Format(time.RFC3339Nano),
		})
		if err := m.saveHistory(ctx, history); err != nil {
			return applied, err
		}
		applied++
		m.metrics.RecordMigrationApplied(mig.Version)
	}
	return applied, nil
}

// Rollback reverts applied migrations down to (and not including) target,
// in descending order. A migration without a Down function stops the
// rollback at that version.
func (m *Manager) Rollback(ctx context.Context, target int) (int, error) {
	if target < 0 {
		return 0, errors.WrapInvalid(errors.ErrInvalidTarget, "migrate", "Rollback", "negative target")
	}
	history, err := m.loadHistory(ctx)
	if err != nil {
		return 0, err
	}
	current := 0
	if len(history) > 0 {
		current = history[len(history)-1].Version
	}
	if target >= current {
		return 0, errors.WrapInvalid(errors.ErrInvalidTarget, "migrate", "Rollback", "target not below current version")
	}

	byVersion := make(map[int]Migration, len(m.migrations))
	for _, mig := range m.migrations {
		byVersion[mig.Version] = mig
	}

	reverted := 0
	for len(history) > 0 {
		last := history[len(history)-1]
		if last.Version <= target {
			break
		}
		mig, ok := byVersion[last.Version]
		if !ok || mig.Down == nil {
			return reverted, errors.WrapInvalid(
				errors.ErrMigrationIncomplete, "migrate", "Rollback", "migration is irreversible")
		}
		m.logger.Info("reverting migration",
			"version", mig.Version, "description", mig.Description)

		if err := mig.Down(ctx, m.kv); err != nil {
			return reverted, errors.WrapFatal(err, "migrate", "Rollback", "revert migration")
		}

		history = history[:len(history)-1]
		if err := m.saveHistory(ctx, history); err != nil {
			return reverted, err
		}
		reverted++
	}

	version := target
	if len(history) > 0 {
		version = history[len(history)-1].Version
	}
	m.metrics.SetSchemaVersion(version)
	return reverted, nil
}

func (m *Manager) loadHistory(ctx context.Context) ([]historyEntry, error) {
	data, found, err := m.kv.Get(ctx, store.MigrationHistoryKey)
	if err != nil {
		return nil, errors.WrapTransient(err, "migrate", "loadHistory", "read history")
	}
	if !found {
		return nil, nil
	}
	var history []historyEntry
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, errors.WrapFatal(errors.ErrDataCorrupted, "migrate", "loadHistory", "decode history")
	}
	return history, nil
}

func (m *Manager) saveHistory(ctx context.Context, history []historyEntry) error {
	data, err := json.Marshal(history)
	if err != nil {
		return errors.WrapFatal(err, "migrate", "saveHistory", "encode history")
	}
	if err := m.kv.Put(ctx, store.MigrationHistoryKey, data); err != nil {
		return errors.WrapTransient(err, "migrate", "saveHistory", "persist history")
	}
	return nil
}
