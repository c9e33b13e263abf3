// Package crmstore is the normalized data layer of a sales CRM, built over
// a flat key-value substrate (NATS JetStream KV in production, an in-memory
// double in tests).
//
// # Overview
//
// The substrate offers only single-key atomic operations on a flat
// namespace: get, set, delete, and list-keys-by-prefix. Everything
// relational is built above it in layers:
//
//	┌─────────────────────────────────────┐
//	│        crm.Database facade          │  Open, cascades, health,
//	│  (typed repos, export/import, seed) │  export/import, seeding
//	└─────────────────────────────────────┘
//	           ↓ composed from
//	┌─────────────────────────────────────┐
//	│   store.Repository[T] + schema      │  validation, foreign keys,
//	│   txn.Manager + migrate.Manager     │  secondary indexes, sagas,
//	│                                     │  versioned migrations
//	└─────────────────────────────────────┘
//	           ↓ reads and writes
//	┌─────────────────────────────────────┐
//	│        store.KV substrate           │  rec.<table>.<id>
//	│   (kvclient.Bucket / testutil)      │  idx.<table>.<field>.<value>
//	└─────────────────────────────────────┘
//
// # Key guarantees
//
//   - A record is validated in full (schema rules, then foreign keys)
//     before any write; a rejected create or update mutates nothing.
//   - Secondary indexes reflect the live record set after every
//     successful create, update, and delete. Index maintenance failures
//     degrade query completeness and are logged, never surfaced as
//     operation errors; the primary record remains the source of truth.
//   - A missing record on read, update, or delete is a normal outcome
//     signaled by a false flag, not an error.
//   - Transactions are compensating, not atomic: each mutation registers
//     an undo action, and rollback replays them in reverse order.
//   - Migrations apply strictly ascending and persist their history on
//     the substrate; a failed migration aborts startup.
//
// # Packages
//
//   - crm: entities, table schemas, typed repositories, Database facade
//   - store: generic repository, secondary indexes, query engine
//   - schema: data-driven validation rules and table descriptors
//   - txn: process-wide compensating transaction slot
//   - migrate: versioned data migrations with persisted history
//   - kvclient: NATS connection management and the JetStream KV bucket
//   - health, metric, config, errors: operational support
package crmstore
