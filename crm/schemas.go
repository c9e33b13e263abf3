package crm

import "github.com/fulqrun/crmstore/schema"

// Enum domains shared by schemas and callers.
var (
	UserRoles      = []string{RoleAdmin, RoleManager, RoleSalesRep, RoleViewer}
	Stages         = []string{StageProspect, StageEngage, StageAcquire, StageKeep, StageClosedWon, StageClosedLost}
	SizeClasses    = []string{SizeSmall, SizeMedium, SizeLarge, SizeEnterprise}
	Priorities     = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
	ActivityTypes  = []string{ActivityCall, ActivityEmail, ActivityMeeting, ActivityDemo, ActivityTask}
	ActivityStates = []string{ActivityPlanned, ActivityCompleted, ActivityCancelled}
)

// stampFields are present on every table.
func stampFields() schema.Schema {
	return schema.Schema{
		"id":         {Type: schema.TypeString},
		"created_at": {Type: schema.TypeTime},
		"updated_at": {Type: schema.TypeTime},
	}
}

func withStamps(s schema.Schema) schema.Schema {
	out := stampFields()
	for field, rule := range s {
		out[field] = rule
	}
	return out
}

func score() schema.Rule {
	return schema.Rule{Type: schema.TypeInteger, Min: schema.Float(0), Max: schema.Float(10)}
}

// UserDescriptor declares the users table.
func UserDescriptor() schema.Descriptor {
	return schema.Descriptor{
		Table: TableUsers,
		Schema: withStamps(schema.Schema{
			"email":  {Type: schema.TypeString, Required: true},
			"name":   {Type: schema.TypeString, Required: true},
			"role":   {Type: schema.TypeString, Required: true, Enum: UserRoles},
			"active": {Type: schema.TypeBool},
		}),
		IndexFields: []string{"email", "role"},
	}
}

// CompanyDescriptor declares the companies table.
func CompanyDescriptor() schema.Descriptor {
	return schema.Descriptor{
		Table: TableCompanies,
		Schema: withStamps(schema.Schema{
			"name":       {Type: schema.TypeString, Required: true},
			"industry":   {Type: schema.TypeString},
			"size_class": {Type: schema.TypeString, Enum: SizeClasses},
			"region":     {Type: schema.TypeString},
			"country":    {Type: schema.TypeString},
			"revenue":    {Type: schema.TypeNumber, Min: schema.Float(0)},
			"employees":  {Type: schema.TypeInteger, Min: schema.Float(0)},
			"segment_id": {Type: schema.TypeString},
		}),
		IndexFields: []string{"industry", "size_class", "segment_id"},
		ForeignKeys: []schema.ForeignKey{
			{Field: "segment_id", RefTable: TableCustomerSegments},
		},
	}
}

// ContactDescriptor declares the contacts table.
func ContactDescriptor() schema.Descriptor {
	return schema.Descriptor{
		Table: TableContacts,
		Schema: withStamps(schema.Schema{
			"company_id": {Type: schema.TypeString, Required: true},
			"first_name": {Type: schema.TypeString, Required: true},
			"last_name":  {Type: schema.TypeString, Required: true},
			"email":      {Type: schema.TypeString},
			"phone":      {Type: schema.TypeString},
			"title":      {Type: schema.TypeString},
			"is_primary": {Type: schema.TypeBool},
		}),
		IndexFields: []string{"company_id", "email"},
		ForeignKeys: []schema.ForeignKey{
			{Field: "company_id", RefTable: TableCompanies},
		},
	}
}

// OpportunityDescriptor declares the opportunities table.
func OpportunityDescriptor() schema.Descriptor {
	return schema.Descriptor{
		Table: TableOpportunities,
		Schema: withStamps(schema.Schema{
			"name":        {Type: schema.TypeString, Required: true},
			"company_id":  {Type: schema.TypeString, Required: true},
			"contact_id":  {Type: schema.TypeString},
			"assignee_id": {Type: schema.TypeString},
			"value":       {Type: schema.TypeNumber, Min: schema.Float(0)},
			"stage":       {Type: schema.TypeString, Required: true, Enum: Stages},
			"probability": {Type: schema.TypeInteger, Min: schema.Float(0), Max: schema.Float(100)},
			"priority":    {Type: schema.TypeString, Enum: Priorities},
			"tags":        {Type: schema.TypeStrings},
			"close_date":  {Type: schema.TypeTime},
		}),
		IndexFields: []string{"company_id", "stage", "assignee_id"},
		ForeignKeys: []schema.ForeignKey{
			{Field: "company_id", RefTable: TableCompanies},
			{Field: "contact_id", RefTable: TableContacts},
			{Field: "assignee_id", RefTable: TableUsers},
		},
	}
}

// MEDDPICCDescriptor declares the meddpicc table.
func MEDDPICCDescriptor() schema.Descriptor {
	return schema.Descriptor{
		Table: TableMEDDPICC,
		Schema: withStamps(schema.Schema{
			"opportunity_id":    {Type: schema.TypeString, Required: true},
			"metrics":           score(),
			"economic_buyer":    score(),
			"decision_criteria": score(),
			"decision_process":  score(),
			"paper_process":     score(),
			"identify_pain":     score(),
			"champion":          score(),
			"competition":       score(),
			"total_score":       {Type: schema.TypeInteger, Min: schema.Float(0), Max: schema.Float(80)},
			"notes":             {Type: schema.TypeString},
		}),
		IndexFields: []string{"opportunity_id"},
		ForeignKeys: []schema.ForeignKey{
			{Field: "opportunity_id", RefTable: TableOpportunities},
		},
	}
}

// PEAKProcessDescriptor declares the peak_processes table.
func PEAKProcessDescriptor() schema.Descriptor {
	return schema.Descriptor{
		Table: TablePEAKProcesses,
		Schema: withStamps(schema.Schema{
			"opportunity_id": {Type: schema.TypeString, Required: true},
			"prospect_score": score(),
			"engage_score":   score(),
			"acquire_score":  score(),
			"keep_score":     score(),
			"total_score":    {Type: schema.TypeInteger, Min: schema.Float(0), Max: schema.Float(40)},
		}),
		IndexFields: []string{"opportunity_id"},
		ForeignKeys: []schema.ForeignKey{
			{Field: "opportunity_id", RefTable: TableOpportunities},
		},
	}
}

// ActivityDescriptor declares the activities table.
func ActivityDescriptor() schema.Descriptor {
	return schema.Descriptor{
		Table: TableActivities,
		Schema: withStamps(schema.Schema{
			"opportunity_id": {Type: schema.TypeString, Required: true},
			"contact_id":     {Type: schema.TypeString},
			"type":           {Type: schema.TypeString, Required: true, Enum: ActivityTypes},
			"subject":        {Type: schema.TypeString, Required: true},
			"status":         {Type: schema.TypeString, Required: true, Enum: ActivityStates},
			"due_at":         {Type: schema.TypeTime},
			"completed_at":   {Type: schema.TypeTime},
		}),
		IndexFields: []string{"opportunity_id", "contact_id"},
		ForeignKeys: []schema.ForeignKey{
			{Field: "opportunity_id", RefTable: TableOpportunities},
			{Field: "contact_id", RefTable: TableContacts},
		},
	}
}

// NoteDescriptor declares the notes table.
func NoteDescriptor() schema.Descriptor {
	return schema.Descriptor{
		Table: TableNotes,
		Schema: withStamps(schema.Schema{
			"opportunity_id": {Type: schema.TypeString, Required: true},
			"activity_id":    {Type: schema.TypeString},
			"author_id":      {Type: schema.TypeString},
			"body":           {Type: schema.TypeString, Required: true},
		}),
		IndexFields: []string{"opportunity_id", "activity_id"},
		ForeignKeys: []schema.ForeignKey{
			{Field: "opportunity_id", RefTable: TableOpportunities},
			{Field: "activity_id", RefTable: TableActivities},
			{Field: "author_id", RefTable: TableUsers},
		},
	}
}

// CustomerSegmentDescriptor declares the customer_segments table.
func CustomerSegmentDescriptor() schema.Descriptor {
	return schema.Descriptor{
		Table: TableCustomerSegments,
		Schema: withStamps(schema.Schema{
			"name":        {Type: schema.TypeString, Required: true},
			"description": {Type: schema.TypeString},
		}),
		IndexFields: []string{"name"},
	}
}

// PipelineConfigDescriptor declares the pipeline_configs table.
func PipelineConfigDescriptor() schema.Descriptor {
	return schema.Descriptor{
		Table: TablePipelineConfigs,
		Schema: withStamps(schema.Schema{
			"name":   {Type: schema.TypeString, Required: true},
			"stages": {Type: schema.TypeStrings, Required: true},
			"active": {Type: schema.TypeBool},
		}),
		IndexFields: []string{"name"},
	}
}

// KPIMetricDescriptor declares the kpi_metrics table.
func KPIMetricDescriptor() schema.Descriptor {
	return schema.Descriptor{
		Table: TableKPIMetrics,
		Schema: withStamps(schema.Schema{
			"name":   {Type: schema.TypeString, Required: true},
			"period": {Type: schema.TypeString, Required: true},
			"value":  {Type: schema.TypeNumber},
			"target": {Type: schema.TypeNumber},
			"unit":   {Type: schema.TypeString},
		}),
		IndexFields: []string{"period"},
	}
}

// Descriptors lists every table descriptor in dependency order: referenced
// tables come before the tables that point at them.
func Descriptors() []schema.Descriptor {
	return []schema.Descriptor{
		UserDescriptor(),
		CustomerSegmentDescriptor(),
		CompanyDescriptor(),
		ContactDescriptor(),
		OpportunityDescriptor(),
		MEDDPICCDescriptor(),
		PEAKProcessDescriptor(),
		ActivityDescriptor(),
		NoteDescriptor(),
		PipelineConfigDescriptor(),
		KPIMetricDescriptor(),
	}
}
