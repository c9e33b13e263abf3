package crm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulqrun/crmstore/errors"
	"github.com/fulqrun/crmstore/health"
	"github.com/fulqrun/crmstore/migrate"
	"github.com/fulqrun/crmstore/store"
	"github.com/fulqrun/crmstore/testutil"
)

func TestOpenRequiresSubstrate(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	assert.Error(t, err)
}

func TestOpenRunsMigrations(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, false)

	version, err := db.Migrations().CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestOpenAbortsOnFailedMigration(t *testing.T) {
	_, err := Open(context.Background(), Options{
		KV: testutil.NewMemoryKV(),
		Migrations: []migrate.Migration{{
			Version:     1,
			Description: "broken",
			Up: func(ctx context.Context, kv store.KV) error {
				return errors.ErrSubstrateUnavailable
			},
		}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMigrationIncomplete)
}

func TestSeedingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryKV()

	db, err := Open(ctx, Options{KV: kv, SeedSampleData: true})
	require.NoError(t, err)

	users, err := db.Users.Count(ctx, nil)
	require.NoError(t, err)
	require.Greater(t, users, 0, "seed must create users")

	companies, err := db.Companies.Count(ctx, nil)
	require.NoError(t, err)
	require.Greater(t, companies, 0)

	// Reopening over the same substrate must not seed again.
	db2, err := Open(ctx, Options{KV: kv, SeedSampleData: true})
	require.NoError(t, err)

	users2, err := db2.Users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, users, users2)
}

func TestSeedDataIsConsistent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, true)

	// Every seeded opportunity resolves its company and assignee.
	opportunities, _, err := db.Opportunities.FindAll(ctx, store.FindOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, opportunities)
	for _, o := range opportunities {
		_, found, err := db.Companies.FindByID(ctx, o.CompanyID)
		require.NoError(t, err)
		assert.True(t, found)
		if o.AssigneeID != "" {
			_, found, err = db.Users.FindByID(ctx, o.AssigneeID)
			require.NoError(t, err)
			assert.True(t, found)
		}
	}

	cfg, found, err := db.PipelineConfigs.ActiveConfig(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEmpty(t, cfg.Stages)
}

func TestDeleteOpportunityCascade(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, false)

	c1 := createCompany(t, db, "C1")
	o, err := db.Opportunities.Create(ctx, Opportunity{
		Name: "O", CompanyID: c1.ID, Stage: StageEngage,
	})
	require.NoError(t, err)

	_, err = db.MEDDPICC.Upsert(ctx, MEDDPICC{OpportunityID: o.ID, Metrics: 5})
	require.NoError(t, err)
	act, err := db.Activities.Create(ctx, Activity{
		OpportunityID: o.ID, Type: ActivityCall, Subject: "intro", Status: ActivityPlanned,
	})
	require.NoError(t, err)
	_, err = db.Notes.Create(ctx, Note{OpportunityID: o.ID, ActivityID: act.ID, Body: "notes"})
	require.NoError(t, err)

	require.NoError(t, db.DeleteOpportunity(ctx, o.ID))

	_, found, err := db.Opportunities.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = db.MEDDPICC.FindByOpportunity(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, found)

	activities, err := db.Activities.FindByOpportunity(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, activities)

	notes, err := db.Notes.FindByOpportunity(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)

	// Company survives an opportunity cascade.
	_, found, err = db.Companies.FindByID(ctx, c1.ID)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestDeleteCompanyCascade(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, false)

	c1 := createCompany(t, db, "C1")
	k1 := createContact(t, db, c1.ID, "K1", true)
	o, err := db.Opportunities.Create(ctx, Opportunity{
		Name: "O", CompanyID: c1.ID, ContactID: k1.ID, Stage: StageProspect,
	})
	require.NoError(t, err)
	_, err = db.PEAKProcesses.Upsert(ctx, PEAKProcess{OpportunityID: o.ID, ProspectScore: 5})
	require.NoError(t, err)

	// Unrelated company is untouched.
	other := createCompany(t, db, "Other")

	require.NoError(t, db.DeleteCompany(ctx, c1.ID))

	for _, check := range []struct {
		name  string
		found func() (bool, error)
	}{
		{"company", func() (bool, error) { return db.Companies.Exists(ctx, c1.ID) }},
		{"contact", func() (bool, error) { return db.Contacts.Exists(ctx, k1.ID) }},
		{"opportunity", func() (bool, error) { return db.Opportunities.Exists(ctx, o.ID) }},
	} {
		found, err := check.found()
		require.NoError(t, err)
		assert.False(t, found, "%s must be cascade-deleted", check.name)
	}

	_, found, err := db.PEAKProcesses.FindByOpportunity(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, found)

	exists, err := db.Companies.Exists(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestHealthStatus(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, true)

	status := db.HealthStatus(ctx)
	assert.True(t, status.IsHealthy())
	assert.Equal(t, 1, status.SchemaVersion)
	require.NotEmpty(t, status.Tables)

	var usersStats *health.TableStats
	for i := range status.Tables {
		if status.Tables[i].Table == TableUsers {
			usersStats = &status.Tables[i]
		}
	}
	require.NotNil(t, usersStats)
	assert.Greater(t, usersStats.RecordCount, 0)
	assert.False(t, usersStats.LastUpdated.IsZero())
}

func TestHealthStatusWarnsOnEmptyInstall(t *testing.T) {
	db := openTestDB(t, false)

	status := db.HealthStatus(context.Background())
	assert.Equal(t, health.LevelWarning, status.Level, "no users is a warning, not critical")
}

func TestHealthStatusCriticalWhenDisconnected(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Options{
		KV:        testutil.NewMemoryKV(),
		Connected: func() bool { return false },
	})
	require.NoError(t, err)

	status := db.HealthStatus(ctx)
	assert.True(t, status.IsCritical())
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := openTestDB(t, true)

	// Add a record on top of the seed to make the snapshot distinctive.
	seg, err := source.CustomerSegments.Create(ctx, CustomerSegment{Name: "SMB"})
	require.NoError(t, err)

	snap, err := source.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", snap.Version)
	assert.NotEmpty(t, snap.Timestamp)
	assert.NotEmpty(t, snap.Data[TableUsers])

	target := openTestDB(t, false)
	require.NoError(t, target.Import(ctx, snap))

	for _, table := range []struct {
		name  string
		count func(context.Context, map[string]any) (int, error)
	}{
		{TableUsers, target.Users.Count},
		{TableCompanies, target.Companies.Count},
		{TableContacts, target.Contacts.Count},
		{TableOpportunities, target.Opportunities.Count},
	} {
		want := len(snap.Data[table.name])
		got, err := table.count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, want, got, "table %s", table.name)
	}

	// Imported records keep their ids and remain queryable by index.
	restored, found, err := target.CustomerSegments.FindByID(ctx, seg.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "SMB", restored.Name)

	users := snap.Data[TableUsers]
	require.NotEmpty(t, users)
	email, _ := users[0]["email"].(string)
	_, found, err = target.Users.FindByEmail(ctx, email)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestImportRejectsNilSnapshot(t *testing.T) {
	db := openTestDB(t, false)
	assert.Error(t, db.Import(context.Background(), nil))
}

func TestWithTransactionFacadeRollback(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, false)

	boom := errors.ErrSubstrateUnavailable
	err := db.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := db.CustomerSegments.Create(ctx, CustomerSegment{Name: "gone"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := db.CustomerSegments.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
