// Package crm defines the CRM's entities and table schemas, wraps each
// table in a typed repository, and exposes the Database facade that wires
// the whole data layer together.
//
// Entity repositories add table-specific lookups over the generic
// repository: primary-contact management on contacts, stage progression
// and staleness queries on opportunities, check-then-write upserts on the
// MEDDPICC and PEAK extension tables.
//
// The Database facade owns startup (migrations, then optional sample-data
// seeding), the shared transaction slot, cascade deletes for companies and
// opportunities, health rollups, and snapshot export/import.
package crm
