package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fulqrun/crmstore/errors"
	"github.com/fulqrun/crmstore/metric"
	"github.com/fulqrun/crmstore/pkg/cache"
	"github.com/fulqrun/crmstore/schema"
	"github.com/fulqrun/crmstore/txn"
)

// Repository is the generic CRUD engine for one entity table. It owns key
// naming, schema validation, foreign-key validation, secondary-index
// maintenance, and timestamp stamping. Entity repositories wrap it with
// domain query methods.
//
// T is the entity struct; its JSON field names are the schema field names.
type Repository[T any] struct {
	desc    schema.Descriptor
	kv      KV
	tx      *txn.Manager
	logger  *slog.Logger
	metrics *metric.Metrics

	// idxCache fronts index-bucket reads. Safe only because the process is
	// the sole writer; invalidated on every index mutation.
	idxCache cache.Cache[[]string]

	nowFn func() time.Time
	newID func() string
}

// Option configures a Repository.
type Option func(*options)

type options struct {
	tx        *txn.Manager
	logger    *slog.Logger
	metrics   *metric.Metrics
	cacheSize int
	nowFn     func() time.Time
	idFn      func() string
}

// WithTransactions attaches the transaction manager; mutations register
// compensating actions while a transaction is active.
func WithTransactions(tx *txn.Manager) Option {
	return func(o *options) { o.tx = tx }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics attaches the metric set.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithIndexCache enables an LRU cache in front of index-bucket reads.
func WithIndexCache(size int) Option {
	return func(o *options) { o.cacheSize = size }
}

// WithClock overrides the timestamp source (tests).
func WithClock(nowFn func() time.Time) Option {
	return func(o *options) { o.nowFn = nowFn }
}

// WithIDGenerator overrides record id generation (tests).
func WithIDGenerator(idFn func() string) Option {
	return func(o *options) { o.idFn = idFn }
}

// NewRepository constructs a repository for one table descriptor. A
// malformed descriptor is a programmer error and fails construction.
func NewRepository[T any](desc schema.Descriptor, kv KV, opts ...Option) (*Repository[T], error) {
	if kv == nil {
		return nil, errors.WrapInvalid(stderrors.New("kv cannot be nil"), "store", "NewRepository", "construct repository")
	}
	if err := desc.Check(); err != nil {
		return nil, errors.WrapFatal(err, "store", "NewRepository", "check table descriptor")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.nowFn == nil {
		o.nowFn = func() time.Time { return time.Now().UTC() }
	}
	if o.idFn == nil {
		o.idFn = uuid.NewString
	}

	r := &Repository[T]{
		desc:    desc,
		kv:      kv,
		tx:      o.tx,
		logger:  o.logger.With("table", desc.Table),
		metrics: o.metrics,
		nowFn:   o.nowFn,
		newID:   o.idFn,
	}
	if o.cacheSize > 0 {
		r.idxCache = cache.NewLRU[[]string](o.cacheSize)
	}
	return r, nil
}

// Table returns the table name.
func (r *Repository[T]) Table() string { return r.desc.Table }

// Descriptor returns the table descriptor.
func (r *Repository[T]) Descriptor() schema.Descriptor { return r.desc }

// Create generates a fresh identifier, stamps timestamps, validates the
// record against the schema and its foreign keys, writes it, and inserts it
// into every configured secondary index. On a validation or foreign-key
// failure nothing is written.
func (r *Repository[T]) Create(ctx context.Context, entity T) (T, error) {
	var zero T

	m, err := toMap(entity)
	if err != nil {
		return zero, errors.WrapInvalid(err, "store", "Create", "encode entity")
	}

	id := r.newID()
	now := r.nowFn().Format(time.RFC3339Nano)
	m["id"] = id
	m["created_at"] = now
	m["updated_at"] = now

	if err := r.validate(ctx, "Create", m); err != nil {
		return zero, err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return zero, errors.WrapFatal(err, "store", "Create", "marshal record")
	}
	if err := r.kv.Put(ctx, RecordKey(r.desc.Table, id), data); err != nil {
		r.metrics.RecordOperationError(r.desc.Table, "create", errors.Classify(err).String())
		return zero, errors.WrapTransient(err, "store", "Create", "write record")
	}

	r.registerOp(txn.KindCreate, id, func(ctx context.Context) error {
		return r.undoCreate(ctx, id, m)
	})

	// The record write is the source of truth; index failures degrade
	// findBy completeness until repaired and are surfaced as warnings only.
	r.insertIndexEntries(ctx, m, id)

	r.metrics.RecordOperation(r.desc.Table, "create")
	return fromMap[T](m)
}

// FindByID returns the record or found=false; a missing id is a normal,
// non-exceptional outcome.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	var zero T

	m, found, err := r.loadMap(ctx, id)
	if err != nil || !found {
		return zero, false, err
	}
	entity, err := fromMap[T](m)
	if err != nil {
		return zero, false, err
	}
	return entity, true, nil
}

// Exists reports whether a record with the id exists.
func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	_, found, err := r.kv.Get(ctx, RecordKey(r.desc.Table, id))
	if err != nil {
		return false, errors.WrapTransient(err, "store", "Exists", "read record")
	}
	return found, nil
}

// FindBy looks up the secondary index for field and fetches each referenced
// record. Only usable for fields declared as indexed. Index entries whose
// record no longer exists are skipped and logged.
func (r *Repository[T]) FindBy(ctx context.Context, field string, value any) ([]T, error) {
	if !r.desc.Indexed(field) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s.%s", errors.ErrFieldNotIndexed, r.desc.Table, field),
			"store", "FindBy", "resolve index")
	}

	val, ok := indexValue(value)
	if !ok {
		return []T{}, nil
	}

	ids, err := r.indexGet(ctx, field, val)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		entity, found, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			r.logger.Debug("stale index entry", "field", field, "value", val, "record_id", id)
			continue
		}
		out = append(out, entity)
	}
	r.metrics.RecordOperation(r.desc.Table, "find_by")
	return out, nil
}

// Update merges partial fields onto the existing record, re-stamps
// updated_at, re-validates the merged result, rewrites the record, and
// repairs every secondary index whose value changed. A missing id returns
// found=false with no error. The id and created_at are immutable.
func (r *Repository[T]) Update(ctx context.Context, id string, changes map[string]any) (T, bool, error) {
	var zero T

	old, found, err := r.loadMap(ctx, id)
	if err != nil || !found {
		return zero, false, err
	}

	merged := make(map[string]any, len(old)+len(changes))
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range changes {
		if k == "id" || k == "created_at" {
			continue
		}
		merged[k] = normalizeValue(v)
	}
	merged["updated_at"] = r.nowFn().Format(time.RFC3339Nano)

	if err := r.validate(ctx, "Update", merged); err != nil {
		return zero, false, err
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return zero, false, errors.WrapFatal(err, "store", "Update", "marshal record")
	}
	oldData, err := json.Marshal(old)
	if err != nil {
		return zero, false, errors.WrapFatal(err, "store", "Update", "marshal previous record")
	}

	if err := r.kv.Put(ctx, RecordKey(r.desc.Table, id), data); err != nil {
		r.metrics.RecordOperationError(r.desc.Table, "update", errors.Classify(err).String())
		return zero, false, errors.WrapTransient(err, "store", "Update", "write record")
	}

	r.registerOp(txn.KindUpdate, id, func(ctx context.Context) error {
		return r.undoUpdate(ctx, id, oldData, old, merged)
	})

	r.repairIndexEntries(ctx, old, merged, id)

	r.metrics.RecordOperation(r.desc.Table, "update")
	entity, err := fromMap[T](merged)
	if err != nil {
		return zero, false, err
	}
	return entity, true, nil
}

// Delete removes the record and retracts it from every secondary index using
// its pre-delete field values. A missing id returns found=false, no error.
func (r *Repository[T]) Delete(ctx context.Context, id string) (bool, error) {
	old, found, err := r.loadMap(ctx, id)
	if err != nil || !found {
		return false, err
	}

	oldData, err := json.Marshal(old)
	if err != nil {
		return false, errors.WrapFatal(err, "store", "Delete", "marshal previous record")
	}

	if err := r.kv.Delete(ctx, RecordKey(r.desc.Table, id)); err != nil {
		r.metrics.RecordOperationError(r.desc.Table, "delete", errors.Classify(err).String())
		return false, errors.WrapTransient(err, "store", "Delete", "delete record")
	}

	r.registerOp(txn.KindDelete, id, func(ctx context.Context) error {
		return r.undoDelete(ctx, id, oldData, old)
	})

	r.removeIndexEntries(ctx, old, id)

	r.metrics.RecordOperation(r.desc.Table, "delete")
	return true, nil
}

// validate runs schema validation then foreign-key checks. Both must pass
// before any storage mutation.
func (r *Repository[T]) validate(ctx context.Context, method string, m map[string]any) error {
	if fieldErrs := r.desc.Schema.Validate(m); len(fieldErrs) > 0 {
		r.metrics.RecordOperationError(r.desc.Table, opName(method), "invalid")
		return errors.NewValidationError(r.desc.Table, fieldErrs)
	}

	for _, fk := range r.desc.ForeignKeys {
		raw, present := m[fk.Field]
		if !present || raw == nil {
			continue
		}
		refID, ok := raw.(string)
		if !ok || refID == "" {
			continue // type errors are the schema's job
		}
		_, found, err := r.kv.Get(ctx, RecordKey(fk.RefTable, refID))
		if err != nil {
			return errors.WrapTransient(err, "store", method, "check foreign key")
		}
		if !found {
			r.metrics.RecordOperationError(r.desc.Table, opName(method), "invalid")
			return errors.NewForeignKeyError(r.desc.Table, fk.Field, fk.RefTable, refID)
		}
	}
	return nil
}

func (r *Repository[T]) loadMap(ctx context.Context, id string) (map[string]any, bool, error) {
	data, found, err := r.kv.Get(ctx, RecordKey(r.desc.Table, id))
	if err != nil {
		return nil, false, errors.WrapTransient(err, "store", "loadMap", "read record")
	}
	if !found {
		return nil, false, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false, errors.WrapFatal(err, "store", "loadMap", "unmarshal record")
	}
	return m, true, nil
}

// registerOp logs a compensating action when a transaction is active.
func (r *Repository[T]) registerOp(kind txn.Kind, id string, compensate func(ctx context.Context) error) {
	if r.tx == nil {
		return
	}
	r.tx.Register(txn.Operation{
		Kind:       kind,
		Table:      r.desc.Table,
		RecordID:   id,
		Compensate: compensate,
	})
}

// Compensating actions. Unlike live index maintenance these return their
// errors: the transaction manager logs and counts them.

func (r *Repository[T]) undoCreate(ctx context.Context, id string, m map[string]any) error {
	var errs []error
	if err := r.kv.Delete(ctx, RecordKey(r.desc.Table, id)); err != nil {
		errs = append(errs, err)
	}
	for _, field := range r.desc.IndexFields {
		if val, ok := indexValue(m[field]); ok {
			if err := r.indexRemove(ctx, field, val, id); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderrors.Join(errs...)
}

func (r *Repository[T]) undoUpdate(ctx context.Context, id string, oldData []byte, old, merged map[string]any) error {
	var errs []error
	if err := r.kv.Put(ctx, RecordKey(r.desc.Table, id), oldData); err != nil {
		errs = append(errs, err)
	}
	// Walk index changes backwards: merged values out, old values in.
	for _, field := range r.desc.IndexFields {
		newVal, newOK := indexValue(merged[field])
		oldVal, oldOK := indexValue(old[field])
		if newOK == oldOK && newVal == oldVal {
			continue
		}
		if newOK {
			if err := r.indexRemove(ctx, field, newVal, id); err != nil {
				errs = append(errs, err)
			}
		}
		if oldOK {
			if err := r.indexAdd(ctx, field, oldVal, id); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderrors.Join(errs...)
}

func (r *Repository[T]) undoDelete(ctx context.Context, id string, oldData []byte, old map[string]any) error {
	var errs []error
	if err := r.kv.Put(ctx, RecordKey(r.desc.Table, id), oldData); err != nil {
		errs = append(errs, err)
	}
	for _, field := range r.desc.IndexFields {
		if val, ok := indexValue(old[field]); ok {
			if err := r.indexAdd(ctx, field, val, id); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderrors.Join(errs...)
}

func opName(method string) string {
	switch method {
	case "Create":
		return "create"
	case "Update":
		return "update"
	default:
		return method
	}
}

// toMap round-trips an entity through JSON into its field map.
func toMap(entity any) (map[string]any, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// fromMap round-trips a field map back into the entity type.
func fromMap[T any](m map[string]any) (T, error) {
	var entity T
	data, err := json.Marshal(m)
	if err != nil {
		return entity, errors.WrapFatal(err, "store", "fromMap", "marshal record")
	}
	if err := json.Unmarshal(data, &entity); err != nil {
		return entity, errors.WrapFatal(err, "store", "fromMap", "decode record")
	}
	return entity, nil
}

// normalizeValue coerces update values into their JSON representation so
// merged records compare and validate like loaded ones.
func normalizeValue(v any) any {
	switch v.(type) {
	case nil, string, bool, float64:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
