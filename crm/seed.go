package crm

import (
	"context"
	"time"
)

// seedIfEmpty populates a fixed sample data set for empty installations.
// The check is on the users table: once any user exists the seed is
// skipped entirely, which keeps repeated Opens idempotent. All writes
// happen inside one transaction so a failed seed leaves nothing behind.
func (db *Database) seedIfEmpty(ctx context.Context) error {
	count, err := db.Users.Count(ctx, nil)
	if err != nil {
		return err
	}
	if count > 0 {
		db.logger.Debug("sample data skipped, users exist", "count", count)
		return nil
	}

	db.logger.Info("seeding sample data")
	return db.WithTransaction(ctx, db.seed)
}

func (db *Database) seed(ctx context.Context) error {
	admin, err := db.Users.Create(ctx, User{
		Email: "admin@example.com", Name: "Avery Admin", Role: RoleAdmin, Active: true,
	})
	if err != nil {
		return err
	}
	rep, err := db.Users.Create(ctx, User{
		Email: "jordan.reyes@example.com", Name: "Jordan Reyes", Role: RoleSalesRep, Active: true,
	})
	if err != nil {
		return err
	}

	enterprise, err := db.CustomerSegments.Create(ctx, CustomerSegment{
		Name: "Enterprise", Description: "Accounts above 1000 seats",
	})
	if err != nil {
		return err
	}
	midmarket, err := db.CustomerSegments.Create(ctx, CustomerSegment{
		Name: "Mid-Market", Description: "Growing accounts, 100 to 1000 seats",
	})
	if err != nil {
		return err
	}

	acme, err := db.Companies.Create(ctx, Company{
		Name: "Acme Industrial", Industry: "manufacturing", SizeClass: SizeEnterprise,
		Region: "EMEA", Country: "DE", Revenue: 250_000_000, Employees: 4200,
		SegmentID: enterprise.ID,
	})
	if err != nil {
		return err
	}
	nimbus, err := db.Companies.Create(ctx, Company{
		Name: "Nimbus Analytics", Industry: "software", SizeClass: SizeMedium,
		Region: "NA", Country: "US", Revenue: 18_000_000, Employees: 140,
		SegmentID: midmarket.ID,
	})
	if err != nil {
		return err
	}

	greta, err := db.Contacts.Create(ctx, Contact{
		CompanyID: acme.ID, FirstName: "Greta", LastName: "Weber",
		Email: "g.weber@acme.example", Title: "VP Operations", IsPrimary: true,
	})
	if err != nil {
		return err
	}
	if _, err = db.Contacts.Create(ctx, Contact{
		CompanyID: acme.ID, FirstName: "Lukas", LastName: "Brandt",
		Email: "l.brandt@acme.example", Title: "Procurement Lead",
	}); err != nil {
		return err
	}
	mei, err := db.Contacts.Create(ctx, Contact{
		CompanyID: nimbus.ID, FirstName: "Mei", LastName: "Tan",
		Email: "mei@nimbus.example", Title: "CTO", IsPrimary: true,
	})
	if err != nil {
		return err
	}

	rollout, err := db.Opportunities.Create(ctx, Opportunity{
		Name: "Acme plant rollout", CompanyID: acme.ID, ContactID: greta.ID,
		AssigneeID: rep.ID, Value: 480_000, Stage: StageEngage, Probability: 45,
		Priority: PriorityHigh, Tags: []string{"expansion", "multi-year"},
	})
	if err != nil {
		return err
	}
	pilot, err := db.Opportunities.Create(ctx, Opportunity{
		Name: "Nimbus platform pilot", CompanyID: nimbus.ID, ContactID: mei.ID,
		AssigneeID: rep.ID, Value: 65_000, Stage: StageProspect, Probability: 20,
		Priority: PriorityMedium, Tags: []string{"pilot"},
	})
	if err != nil {
		return err
	}

	if _, err = db.MEDDPICC.Upsert(ctx, MEDDPICC{
		OpportunityID: rollout.ID,
		Metrics:       7, EconomicBuyer: 6, DecisionCriteria: 5, DecisionProcess: 4,
		PaperProcess: 3, IdentifyPain: 8, Champion: 7, Competition: 5,
		Notes: "Champion confirmed, paper process unclear",
	}); err != nil {
		return err
	}
	if _, err = db.PEAKProcesses.Upsert(ctx, PEAKProcess{
		OpportunityID: rollout.ID,
		ProspectScore: 9, EngageScore: 6, AcquireScore: 2, KeepScore: 0,
	}); err != nil {
		return err
	}

	demo, err := db.Activities.Create(ctx, Activity{
		OpportunityID: rollout.ID, ContactID: greta.ID, Type: ActivityDemo,
		Subject: "Plant floor walkthrough", Status: ActivityCompleted,
		CompletedAt: time.Now().UTC().Add(-72 * time.Hour),
	})
	if err != nil {
		return err
	}
	if _, err = db.Activities.Create(ctx, Activity{
		OpportunityID: pilot.ID, ContactID: mei.ID, Type: ActivityCall,
		Subject: "Pilot scoping call", Status: ActivityPlanned,
		DueAt: time.Now().UTC().Add(96 * time.Hour),
	}); err != nil {
		return err
	}

	if _, err = db.Notes.Create(ctx, Note{
		OpportunityID: rollout.ID, ActivityID: demo.ID, AuthorID: rep.ID,
		Body: "Walkthrough went well. Operations team wants staged rollout starting Q2.",
	}); err != nil {
		return err
	}

	if _, err = db.PipelineConfigs.Create(ctx, PipelineConfig{
		Name: "default", Stages: stageOrder, Active: true,
	}); err != nil {
		return err
	}

	for _, kpi := range []KPIMetric{
		{Name: "pipeline_value", Period: "2026-Q3", Value: 545_000, Target: 800_000, Unit: "USD"},
		{Name: "win_rate", Period: "2026-Q3", Value: 31, Target: 35, Unit: "percent"},
	} {
		if _, err = db.KPIMetrics.Create(ctx, kpi); err != nil {
			return err
		}
	}

	db.logger.Info("sample data seeded", "admin", admin.Email)
	return nil
}
