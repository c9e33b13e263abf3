package crm

import (
	"context"
	"log/slog"
	"time"

	"github.com/fulqrun/crmstore/errors"
	"github.com/fulqrun/crmstore/health"
	"github.com/fulqrun/crmstore/metric"
	"github.com/fulqrun/crmstore/migrate"
	"github.com/fulqrun/crmstore/store"
	"github.com/fulqrun/crmstore/txn"
)

// Options configures a Database.
type Options struct {
	// KV is the storage substrate. Required.
	KV store.KV

	// Logger receives structured operational logs. Defaults to slog.Default.
	Logger *slog.Logger

	// Metrics receives operation counters. Optional.
	Metrics *metric.Metrics

	// Migrations run at Open before any repository traffic. Defaults to
	// DefaultMigrations when nil.
	Migrations []migrate.Migration

	// SeedSampleData populates a fixed demo data set when the users table
	// is empty. Skipped entirely once any user exists.
	SeedSampleData bool

	// IndexCacheSize bounds the per-repository index bucket cache.
	// Zero uses the repository default.
	IndexCacheSize int

	// Connected reports substrate connectivity for health rollups.
	// Optional; when nil the connection check is skipped.
	Connected func() bool
}

// Database is the facade over the data layer: one typed repository per
// table, the shared transaction slot, and the migration manager.
type Database struct {
	kv       store.KV
	tx       *txn.Manager
	migrator *migrate.Manager
	logger   *slog.Logger
	metrics  *metric.Metrics

	connected func() bool

	Users            Users
	Companies        Companies
	Contacts         Contacts
	Opportunities    Opportunities
	MEDDPICC         MEDDPICCRepo
	PEAKProcesses    PEAKProcesses
	Activities       Activities
	Notes            Notes
	CustomerSegments CustomerSegments
	PipelineConfigs  PipelineConfigs
	KPIMetrics       KPIMetrics
}

// Open wires the data layer over a substrate: migrations run first, every
// repository is constructed, and an empty installation is optionally
// seeded. A failed migration aborts Open.
func Open(ctx context.Context, opts Options) (*Database, error) {
	if opts.KV == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "crm", "Open", "substrate required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db := &Database{
		kv:        opts.KV,
		tx:        txn.NewManager(logger, opts.Metrics),
		logger:    logger,
		metrics:   opts.Metrics,
		connected: opts.Connected,
	}

	migrations := opts.Migrations
	if migrations == nil {
		migrations = DefaultMigrations()
	}
	migrator, err := migrate.NewManager(opts.KV,
		migrate.WithLogger(logger), migrate.WithMetrics(opts.Metrics))
	if err != nil {
		return nil, err
	}
	for _, m := range migrations {
		if err := migrator.Register(m); err != nil {
			return nil, err
		}
	}
	db.migrator = migrator

	applied, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, err
	}
	if applied > 0 {
		logger.Info("migrations applied", "count", applied)
	}

	if err := db.buildRepositories(opts); err != nil {
		return nil, err
	}

	if opts.SeedSampleData {
		if err := db.seedIfEmpty(ctx); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func (db *Database) buildRepositories(opts Options) error {
	repoOpts := []store.Option{
		store.WithTransactions(db.tx),
		store.WithLogger(db.logger),
	}
	if db.metrics != nil {
		repoOpts = append(repoOpts, store.WithMetrics(db.metrics))
	}
	if opts.IndexCacheSize > 0 {
		repoOpts = append(repoOpts, store.WithIndexCache(opts.IndexCacheSize))
	}

	var err error
	if db.Users.Repository, err = store.NewRepository[User](UserDescriptor(), db.kv, repoOpts...); err != nil {
		return err
	}
	if db.CustomerSegments.Repository, err = store.NewRepository[CustomerSegment](CustomerSegmentDescriptor(), db.kv, repoOpts...); err != nil {
		return err
	}
	if db.Companies.Repository, err = store.NewRepository[Company](CompanyDescriptor(), db.kv, repoOpts...); err != nil {
		return err
	}
	if db.Contacts.Repository, err = store.NewRepository[Contact](ContactDescriptor(), db.kv, repoOpts...); err != nil {
		return err
	}
	if db.Opportunities.Repository, err = store.NewRepository[Opportunity](OpportunityDescriptor(), db.kv, repoOpts...); err != nil {
		return err
	}
	if db.MEDDPICC.Repository, err = store.NewRepository[MEDDPICC](MEDDPICCDescriptor(), db.kv, repoOpts...); err != nil {
		return err
	}
	if db.PEAKProcesses.Repository, err = store.NewRepository[PEAKProcess](PEAKProcessDescriptor(), db.kv, repoOpts...); err != nil {
		return err
	}
	if db.Activities.Repository, err = store.NewRepository[Activity](ActivityDescriptor(), db.kv, repoOpts...); err != nil {
		return err
	}
	if db.Notes.Repository, err = store.NewRepository[Note](NoteDescriptor(), db.kv, repoOpts...); err != nil {
		return err
	}
	if db.PipelineConfigs.Repository, err = store.NewRepository[PipelineConfig](PipelineConfigDescriptor(), db.kv, repoOpts...); err != nil {
		return err
	}
	if db.KPIMetrics.Repository, err = store.NewRepository[KPIMetric](KPIMetricDescriptor(), db.kv, repoOpts...); err != nil {
		return err
	}
	return nil
}

// Transactions exposes the transaction manager.
func (db *Database) Transactions() *txn.Manager {
	return db.tx
}

// Migrations exposes the migration manager.
func (db *Database) Migrations() *migrate.Manager {
	return db.migrator
}

// WithTransaction runs fn inside the shared transaction slot: commit on
// nil, rollback of every registered operation on error or panic.
func (db *Database) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.tx.WithTransaction(ctx, fn)
}

// DeleteOpportunity removes an opportunity and its dependents (scorecards,
// activities, notes) inside one transaction.
func (db *Database) DeleteOpportunity(ctx context.Context, id string) error {
	return db.WithTransaction(ctx, func(ctx context.Context) error {
		return db.deleteOpportunityCascade(ctx, id)
	})
}

func (db *Database) deleteOpportunityCascade(ctx context.Context, id string) error {
	notes, err := db.Notes.FindByOpportunity(ctx, id)
	if err != nil {
		return err
	}
	for _, n := range notes {
		if _, err := db.Notes.Delete(ctx, n.ID); err != nil {
			return err
		}
	}

	activities, err := db.Activities.FindByOpportunity(ctx, id)
	if err != nil {
		return err
	}
	for _, a := range activities {
		if _, err := db.Activities.Delete(ctx, a.ID); err != nil {
			return err
		}
	}

	if m, found, err := db.MEDDPICC.FindByOpportunity(ctx, id); err != nil {
		return err
	} else if found {
		if _, err := db.MEDDPICC.Delete(ctx, m.ID); err != nil {
			return err
		}
	}
	if p, found, err := db.PEAKProcesses.FindByOpportunity(ctx, id); err != nil {
		return err
	} else if found {
		if _, err := db.PEAKProcesses.Delete(ctx, p.ID); err != nil {
			return err
		}
	}

	_, err = db.Opportunities.Delete(ctx, id)
	return err
}

// DeleteCompany removes a company with its contacts, opportunities, and
// their dependents inside one transaction.
func (db *Database) DeleteCompany(ctx context.Context, id string) error {
	return db.WithTransaction(ctx, func(ctx context.Context) error {
		opportunities, err := db.Opportunities.FindByCompany(ctx, id)
		if err != nil {
			return err
		}
		for _, o := range opportunities {
			if err := db.deleteOpportunityCascade(ctx, o.ID); err != nil {
				return err
			}
		}

		contacts, err := db.Contacts.FindByCompany(ctx, id)
		if err != nil {
			return err
		}
		for _, c := range contacts {
			if _, err := db.Contacts.Delete(ctx, c.ID); err != nil {
				return err
			}
		}

		_, err = db.Companies.Delete(ctx, id)
		return err
	})
}

// HealthStatus rolls the substrate connection, migration state, and
// per-table statistics into one verdict.
func (db *Database) HealthStatus(ctx context.Context) health.Status {
	status := health.New(time.Now().UTC())

	if db.connected != nil {
		if db.connected() {
			status = status.WithCheck(health.Check{Name: "connection", Level: health.LevelHealthy})
		} else {
			status = status.WithCheck(health.Check{
				Name: "connection", Level: health.LevelCritical, Message: "substrate unreachable",
			})
		}
	}

	version, err := db.migrator.CurrentVersion(ctx)
	switch {
	case err != nil:
		status = status.WithCheck(health.Check{
			Name: "migrations", Level: health.LevelCritical, Message: err.Error(),
		})
	default:
		status.SchemaVersion = version
		pending, err := db.migrator.NeedsMigration(ctx)
		if err != nil {
			status = status.WithCheck(health.Check{
				Name: "migrations", Level: health.LevelCritical, Message: err.Error(),
			})
		} else if pending {
			status = status.WithCheck(health.Check{
				Name: "migrations", Level: health.LevelWarning, Message: "migrations pending",
			})
		} else {
			status = status.WithCheck(health.Check{Name: "migrations", Level: health.LevelHealthy})
		}
	}

	stats, err := db.tableStats(ctx)
	if err != nil {
		status = status.WithCheck(health.Check{
			Name: "tables", Level: health.LevelCritical, Message: err.Error(),
		})
		return status
	}
	status.Tables = stats
	status = status.WithCheck(health.Check{Name: "tables", Level: health.LevelHealthy})

	for _, ts := range stats {
		if ts.Table == TableUsers && ts.RecordCount == 0 {
			status = status.WithCheck(health.Check{
				Name: "users", Level: health.LevelWarning, Message: "no user accounts",
			})
		}
	}
	return status
}

func (db *Database) tableStats(ctx context.Context) ([]health.TableStats, error) {
	var out []health.TableStats
	for _, t := range db.tables() {
		records, err := t.dump(ctx)
		if err != nil {
			return nil, err
		}
		ts := health.TableStats{Table: t.name, RecordCount: len(records)}
		for _, m := range records {
			if raw, ok := m["updated_at"].(string); ok {
				if at, err := time.Parse(time.RFC3339, raw); err == nil && at.After(ts.LastUpdated) {
					ts.LastUpdated = at
				}
			}
		}
		out = append(out, ts)
	}
	return out, nil
}

// tableIO pairs a table with its snapshot dump and restore functions, in
// dependency order: referenced tables first.
type tableIO struct {
	name    string
	dump    func(ctx context.Context) ([]map[string]any, error)
	restore func(ctx context.Context, m map[string]any) error
}

func (db *Database) tables() []tableIO {
	return []tableIO{
		{TableUsers, db.Users.Dump, db.Users.Restore},
		{TableCustomerSegments, db.CustomerSegments.Dump, db.CustomerSegments.Restore},
		{TableCompanies, db.Companies.Dump, db.Companies.Restore},
		{TableContacts, db.Contacts.Dump, db.Contacts.Restore},
		{TableOpportunities, db.Opportunities.Dump, db.Opportunities.Restore},
		{TableMEDDPICC, db.MEDDPICC.Dump, db.MEDDPICC.Restore},
		{TablePEAKProcesses, db.PEAKProcesses.Dump, db.PEAKProcesses.Restore},
		{TableActivities, db.Activities.Dump, db.Activities.Restore},
		{TableNotes, db.Notes.Dump, db.Notes.Restore},
		{TablePipelineConfigs, db.PipelineConfigs.Dump, db.PipelineConfigs.Restore},
		{TableKPIMetrics, db.KPIMetrics.Dump, db.KPIMetrics.Restore},
	}
}
