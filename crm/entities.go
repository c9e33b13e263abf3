package crm

import "time"

// Table names in the flat namespace.
const (
	TableUsers            = "users"
	TableCompanies        = "companies"
	TableContacts         = "contacts"
	TableOpportunities    = "opportunities"
	TableMEDDPICC         = "meddpicc"
	TablePEAKProcesses    = "peak_processes"
	TableActivities       = "activities"
	TableNotes            = "notes"
	TableCustomerSegments = "customer_segments"
	TablePipelineConfigs  = "pipeline_configs"
	TableKPIMetrics       = "kpi_metrics"
)

// User roles.
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleSalesRep = "sales_rep"
	RoleViewer   = "viewer"
)

// Opportunity stages follow the PEAK progression with two terminal states.
const (
	StageProspect   = "prospect"
	StageEngage     = "engage"
	StageAcquire    = "acquire"
	StageKeep       = "keep"
	StageClosedWon  = "closed_won"
	StageClosedLost = "closed_lost"
)

// Company size classes.
const (
	SizeSmall      = "small"
	SizeMedium     = "medium"
	SizeLarge      = "large"
	SizeEnterprise = "enterprise"
)

// Opportunity priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Activity types and statuses.
const (
	ActivityCall    = "call"
	ActivityEmail   = "email"
	ActivityMeeting = "meeting"
	ActivityDemo    = "demo"
	ActivityTask    = "task"

	ActivityPlanned   = "planned"
	ActivityCompleted = "completed"
	ActivityCancelled = "cancelled"
)

// User is an account that owns opportunities and authors notes.
type User struct {
	ID        string    `json:"id,omitempty"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Company is an organization being sold to.
type Company struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Industry  string    `json:"industry,omitempty"`
	SizeClass string    `json:"size_class,omitempty"`
	Region    string    `json:"region,omitempty"`
	Country   string    `json:"country,omitempty"`
	Revenue   float64   `json:"revenue,omitempty"`
	Employees int       `json:"employees,omitempty"`
	SegmentID string    `json:"segment_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contact is a person at a company. At most one contact per company holds
// IsPrimary; Contacts.SetPrimaryContact maintains that invariant.
type Contact struct {
	ID        string    `json:"id,omitempty"`
	CompanyID string    `json:"company_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Title     string    `json:"title,omitempty"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Opportunity is a deal in the pipeline.
type Opportunity struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	CompanyID   string    `json:"company_id"`
	ContactID   string    `json:"contact_id,omitempty"`
	AssigneeID  string    `json:"assignee_id,omitempty"`
	Value       float64   `json:"value"`
	Stage       string    `json:"stage"`
	Probability int       `json:"probability"`
	Priority    string    `json:"priority,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CloseDate   time.Time `json:"close_date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MEDDPICC is the qualification scorecard for one opportunity. Sub-scores
// run 0 to 10; TotalScore is their sum, maintained by the caller.
type MEDDPICC struct {
	ID               string    `json:"id,omitempty"`
	OpportunityID    string    `json:"opportunity_id"`
	Metrics          int       `json:"metrics"`
	EconomicBuyer    int       `json:"economic_buyer"`
	DecisionCriteria int       `json:"decision_criteria"`
	DecisionProcess  int       `json:"decision_process"`
	PaperProcess     int       `json:"paper_process"`
	IdentifyPain     int       `json:"identify_pain"`
	Champion         int       `json:"champion"`
	Competition      int       `json:"competition"`
	TotalScore       int       `json:"total_score"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Sum recomputes the total from the eight sub-scores.
func (m MEDDPICC) Sum() int {
	return m.Metrics + m.EconomicBuyer + m.DecisionCriteria + m.DecisionProcess +
		m.PaperProcess + m.IdentifyPain + m.Champion + m.Competition
}

// PEAKProcess tracks per-stage progress scores for one opportunity.
type PEAKProcess struct {
	ID            string    `json:"id,omitempty"`
	OpportunityID string    `json:"opportunity_id"`
	ProspectScore int       `json:"prospect_score"`
	EngageScore   int       `json:"engage_score"`
	AcquireScore  int       `json:"acquire_score"`
	KeepScore     int       `json:"keep_score"`
	TotalScore    int       `json:"total_score"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Sum recomputes the total from the four stage scores.
func (p PEAKProcess) Sum() int {
	return p.ProspectScore + p.EngageScore + p.AcquireScore + p.KeepScore
}

// Activity is a scheduled or completed interaction on an opportunity.
type Activity struct {
	ID            string    `json:"id,omitempty"`
	OpportunityID string    `json:"opportunity_id"`
	ContactID     string    `json:"contact_id,omitempty"`
	Type          string    `json:"type"`
	Subject       string    `json:"subject"`
	Status        string    `json:"status"`
	DueAt         time.Time `json:"due_at,omitempty"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Note is free-form text attached to an opportunity, optionally tied to an
// activity.
type Note struct {
	ID            string    `json:"id,omitempty"`
	OpportunityID string    `json:"opportunity_id"`
	ActivityID    string    `json:"activity_id,omitempty"`
	AuthorID      string    `json:"author_id,omitempty"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CustomerSegment groups companies for reporting.
type CustomerSegment struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PipelineConfig names an ordered stage progression.
type PipelineConfig struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Stages    []string  `json:"stages"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KPIMetric is one measured value for a reporting period.
type KPIMetric struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Period    string    `json:"period"`
	Value     float64   `json:"value"`
	Target    float64   `json:"target,omitempty"`
	Unit      string    `json:"unit,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
