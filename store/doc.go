// Package store implements the generic CRUD engine the CRM data layer is
// built on: one Repository per entity table, parameterized by a declarative
// table descriptor (schema, index fields, foreign-key edges) and operating
// over a flat key-value substrate.
//
// # Key layout
//
// The substrate is one flat namespace; the repository carves it up by
// prefix:
//
//	rec.<table>.<id>                  primary record (JSON document)
//	idx.<table>.<field>.<value>       index bucket (JSON array of ids)
//	sys.migrations                    migration history
//
// # Guarantees
//
// Create and Update validate the full candidate record (schema rules, then
// foreign keys) before touching the substrate; a rejected write mutates
// nothing. Secondary indexes are repaired on every successful mutation;
// an index-maintenance failure after the record write is logged as a
// warning and counted, because the record itself is the source of truth and
// a missed index entry only degrades FindBy completeness.
//
// Missing records on read, update and delete are normal outcomes signaled
// by a false "found" result, never by an error.
//
// When a transaction is active (see the txn package), every mutation
// registers a compensating action so the sequence can be unwound in
// reverse order on rollback.
package store
