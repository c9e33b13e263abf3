package crm

import (
	"context"
	"time"

	"github.com/fulqrun/crmstore/errors"
	"github.com/fulqrun/crmstore/store"
)

// Users wraps the users table with entity-specific lookups.
type Users struct {
	*store.Repository[User]
}

// FindByEmail returns the user with the given email, if any. Email is
// unique by convention; the first match wins when data predates that rule.
func (r Users) FindByEmail(ctx context.Context, email string) (User, bool, error) {
	matches, err := r.FindBy(ctx, "email", email)
	if err != nil || len(matches) == 0 {
		return User{}, false, err
	}
	return matches[0], true, nil
}

// Companies wraps the companies table.
type Companies struct {
	*store.Repository[Company]
}

// FindByIndustry returns the companies in an industry.
func (r Companies) FindByIndustry(ctx context.Context, industry string) ([]Company, error) {
	return r.FindBy(ctx, "industry", industry)
}

// FindBySegment returns the companies assigned to a segment.
func (r Companies) FindBySegment(ctx context.Context, segmentID string) ([]Company, error) {
	return r.FindBy(ctx, "segment_id", segmentID)
}

// Contacts wraps the contacts table.
type Contacts struct {
	*store.Repository[Contact]
}

// FindByCompany returns every contact of a company.
func (r Contacts) FindByCompany(ctx context.Context, companyID string) ([]Contact, error) {
	return r.FindBy(ctx, "company_id", companyID)
}

// FindByEmail returns the contacts with the given email.
func (r Contacts) FindByEmail(ctx context.Context, email string) ([]Contact, error) {
	return r.FindBy(ctx, "email", email)
}

// PrimaryForCompany returns the company's primary contact, if one is set.
func (r Contacts) PrimaryForCompany(ctx context.Context, companyID string) (Contact, bool, error) {
	contacts, err := r.FindByCompany(ctx, companyID)
	if err != nil {
		return Contact{}, false, err
	}
	for _, c := range contacts {
		if c.IsPrimary {
			return c, true, nil
		}
	}
	return Contact{}, false, nil
}

// SetPrimaryContact makes contactID the sole primary contact of the
// company: every other primary flag under the company is cleared first,
// then the target is set. Storage does not enforce the invariant; this
// clear-then-set operation does.
func (r Contacts) SetPrimaryContact(ctx context.Context, companyID, contactID string) error {
	contacts, err := r.FindByCompany(ctx, companyID)
	if err != nil {
		return err
	}

	var target *Contact
	for i := range contacts {
		if contacts[i].ID == contactID {
			target = &contacts[i]
			break
		}
	}
	if target == nil {
		return errors.WrapInvalid(errors.ErrKeyNotFound, "crm", "SetPrimaryContact", "contact not under company")
	}

	for _, c := range contacts {
		if c.ID != contactID && c.IsPrimary {
			if _, _, err := r.Update(ctx, c.ID, map[string]any{"is_primary": false}); err != nil {
				return err
			}
		}
	}
	if !target.IsPrimary {
		if _, _, err := r.Update(ctx, contactID, map[string]any{"is_primary": true}); err != nil {
			return err
		}
	}
	return nil
}

// Opportunities wraps the opportunities table.
type Opportunities struct {
	*store.Repository[Opportunity]
}

// FindByCompany returns the opportunities of a company.
func (r Opportunities) FindByCompany(ctx context.Context, companyID string) ([]Opportunity, error) {
	return r.FindBy(ctx, "company_id", companyID)
}

// FindByStage returns the opportunities currently in a stage.
func (r Opportunities) FindByStage(ctx context.Context, stage string) ([]Opportunity, error) {
	return r.FindBy(ctx, "stage", stage)
}

// FindByAssignee returns the opportunities owned by a user.
func (r Opportunities) FindByAssignee(ctx context.Context, userID string) ([]Opportunity, error) {
	return r.FindBy(ctx, "assignee_id", userID)
}

// FindStaleDeals returns open opportunities not touched since the cutoff.
// Closed stages never count as stale.
func (r Opportunities) FindStaleDeals(ctx context.Context, cutoff time.Time) ([]Opportunity, error) {
	all, _, err := r.FindAll(ctx, store.FindOptions{})
	if err != nil {
		return nil, err
	}
	var stale []Opportunity
	for _, o := range all {
		if o.Stage == StageClosedWon || o.Stage == StageClosedLost {
			continue
		}
		if o.UpdatedAt.Before(cutoff) {
			stale = append(stale, o)
		}
	}
	return stale, nil
}

// stageOrder is the open-pipeline progression; the closed stages are set
// explicitly, never by advancing.
var stageOrder = []string{StageProspect, StageEngage, StageAcquire, StageKeep}

// AdvanceStage moves an opportunity to the next stage in the progression.
func (r Opportunities) AdvanceStage(ctx context.Context, id string) (Opportunity, bool, error) {
	current, found, err := r.FindByID(ctx, id)
	if err != nil || !found {
		return Opportunity{}, found, err
	}

	next := ""
	for i, stage := range stageOrder {
		if stage == current.Stage && i+1 < len(stageOrder) {
			next = stageOrder[i+1]
			break
		}
	}
	if next == "" {
		return Opportunity{}, true, errors.WrapInvalid(
			errors.ErrInvalidTarget, "crm", "AdvanceStage", "stage has no successor")
	}
	return r.Update(ctx, id, map[string]any{"stage": next})
}

// MEDDPICCRepo wraps the meddpicc table.
type MEDDPICCRepo struct {
	*store.Repository[MEDDPICC]
}

// FindByOpportunity returns the opportunity's scorecard, if one exists.
func (r MEDDPICCRepo) FindByOpportunity(ctx context.Context, opportunityID string) (MEDDPICC, bool, error) {
	matches, err := r.FindBy(ctx, "opportunity_id", opportunityID)
	if err != nil || len(matches) == 0 {
		return MEDDPICC{}, false, err
	}
	return matches[0], true, nil
}

// Upsert creates the opportunity's scorecard or updates the existing one.
// TotalScore is recomputed from the sub-scores on every write. The
// check-then-write sequence is not atomic; two concurrent upserts for the
// same opportunity can both create.
func (r MEDDPICCRepo) Upsert(ctx context.Context, m MEDDPICC) (MEDDPICC, error) {
	m.TotalScore = m.Sum()

	existing, found, err := r.FindByOpportunity(ctx, m.OpportunityID)
	if err != nil {
		return MEDDPICC{}, err
	}
	if !found {
		return r.Create(ctx, m)
	}

	updated, _, err := r.Update(ctx, existing.ID, map[string]any{
		"metrics":           m.Metrics,
		"economic_buyer":    m.EconomicBuyer,
		"decision_criteria": m.DecisionCriteria,
		"decision_process":  m.DecisionProcess,
		"paper_process":     m.PaperProcess,
		"identify_pain":     m.IdentifyPain,
		"champion":          m.Champion,
		"competition":       m.Competition,
		"total_score":       m.TotalScore,
		"notes":             m.Notes,
	})
	return updated, err
}

// PEAKProcesses wraps the peak_processes table.
type PEAKProcesses struct {
	*store.Repository[PEAKProcess]
}

// FindByOpportunity returns the opportunity's PEAK record, if one exists.
func (r PEAKProcesses) FindByOpportunity(ctx context.Context, opportunityID string) (PEAKProcess, bool, error) {
	matches, err := r.FindBy(ctx, "opportunity_id", opportunityID)
	if err != nil || len(matches) == 0 {
		return PEAKProcess{}, false, err
	}
	return matches[0], true, nil
}

// Upsert creates or updates the opportunity's PEAK record. Same
// non-atomic check-then-write caveat as the MEDDPICC upsert.
func (r PEAKProcesses) Upsert(ctx context.Context, p PEAKProcess) (PEAKProcess, error) {
	p.TotalScore = p.Sum()

	existing, found, err := r.FindByOpportunity(ctx, p.OpportunityID)
	if err != nil {
		return PEAKProcess{}, err
	}
	if !found {
		return r.Create(ctx, p)
	}

	updated, _, err := r.Update(ctx, existing.ID, map[string]any{
		"prospect_score": p.ProspectScore,
		"engage_score":   p.EngageScore,
		"acquire_score":  p.AcquireScore,
		"keep_score":     p.KeepScore,
		"total_score":    p.TotalScore,
	})
	return updated, err
}

// Activities wraps the activities table.
type Activities struct {
	*store.Repository[Activity]
}

// FindByOpportunity returns the activities logged against an opportunity.
func (r Activities) FindByOpportunity(ctx context.Context, opportunityID string) ([]Activity, error) {
	return r.FindBy(ctx, "opportunity_id", opportunityID)
}

// FindByContact returns the activities involving a contact.
func (r Activities) FindByContact(ctx context.Context, contactID string) ([]Activity, error) {
	return r.FindBy(ctx, "contact_id", contactID)
}

// Notes wraps the notes table.
type Notes struct {
	*store.Repository[Note]
}

// FindByOpportunity returns the notes on an opportunity.
func (r Notes) FindByOpportunity(ctx context.Context, opportunityID string) ([]Note, error) {
	return r.FindBy(ctx, "opportunity_id", opportunityID)
}

// FindByActivity returns the notes tied to an activity.
func (r Notes) FindByActivity(ctx context.Context, activityID string) ([]Note, error) {
	return r.FindBy(ctx, "activity_id", activityID)
}

// CustomerSegments wraps the customer_segments table.
type CustomerSegments struct {
	*store.Repository[CustomerSegment]
}

// PipelineConfigs wraps the pipeline_configs table.
type PipelineConfigs struct {
	*store.Repository[PipelineConfig]
}

// ActiveConfig returns the first active pipeline configuration.
func (r PipelineConfigs) ActiveConfig(ctx context.Context) (PipelineConfig, bool, error) {
	all, _, err := r.FindAll(ctx, store.FindOptions{Filters: map[string]any{"active": true}})
	if err != nil || len(all) == 0 {
		return PipelineConfig{}, false, err
	}
	return all[0], true, nil
}

// KPIMetrics wraps the kpi_metrics table.
type KPIMetrics struct {
	*store.Repository[KPIMetric]
}

// FindByPeriod returns the metrics recorded for a reporting period.
func (r KPIMetrics) FindByPeriod(ctx context.Context, period string) ([]KPIMetric, error) {
	return r.FindBy(ctx, "period", period)
}
