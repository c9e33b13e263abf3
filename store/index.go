package store

import (
	"context"
	"encoding/json"

	"github.com/fulqrun/crmstore/errors"
)

// Secondary-index maintenance. Each index bucket is one KV entry holding the
// JSON-encoded set of record ids whose field value equals the bucket value.
// Buckets are deleted when they empty out so Keys() on an index prefix only
// lists live values.

// indexGet returns the record ids in one index bucket, via the cache when
// enabled.
func (r *Repository[T]) indexGet(ctx context.Context, field, value string) ([]string, error) {
	key := IndexKey(r.desc.Table, field, value)

	if r.idxCache != nil {
		if ids, ok := r.idxCache.Get(key); ok {
			return ids, nil
		}
	}

	ids, err := r.readIndexBucket(ctx, key)
	if err != nil {
		return nil, err
	}
	if r.idxCache != nil {
		r.idxCache.Set(key, ids)
	}
	return ids, nil
}

func (r *Repository[T]) readIndexBucket(ctx context.Context, key string) ([]string, error) {
	data, found, err := r.kv.Get(ctx, key)
	if err != nil {
		return nil, errors.WrapTransient(err, "store", "indexGet", "read index bucket")
	}
	if !found {
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, errors.WrapFatal(err, "store", "indexGet", "unmarshal index bucket")
	}
	return ids, nil
}

// indexAdd inserts a record id into the bucket for (field, value), creating
// the bucket if absent.
func (r *Repository[T]) indexAdd(ctx context.Context, field, value, id string) error {
	key := IndexKey(r.desc.Table, field, value)

	ids, err := r.readIndexBucket(ctx, key)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil // already present
		}
	}
	ids = append(ids, id)

	data, err := json.Marshal(ids)
	if err != nil {
		return errors.WrapFatal(err, "store", "indexAdd", "marshal index bucket")
	}
	if err := r.kv.Put(ctx, key, data); err != nil {
		return errors.WrapTransient(err, "store", "indexAdd", "write index bucket")
	}
	if r.idxCache != nil {
		r.idxCache.Set(key, ids)
	}
	return nil
}

// indexRemove removes a record id from the bucket for (field, value),
// deleting the bucket when it becomes empty.
func (r *Repository[T]) indexRemove(ctx context.Context, field, value, id string) error {
	key := IndexKey(r.desc.Table, field, value)

	ids, err := r.readIndexBucket(ctx, key)
	if err != nil {
		return err
	}

	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(ids) {
		return nil // id was not in the bucket
	}

	if len(kept) == 0 {
		if err := r.kv.Delete(ctx, key); err != nil {
			return errors.WrapTransient(err, "store", "indexRemove", "delete empty index bucket")
		}
		if r.idxCache != nil {
			r.idxCache.Delete(key)
		}
		return nil
	}

	data, err := json.Marshal(kept)
	if err != nil {
		return errors.WrapFatal(err, "store", "indexRemove", "marshal index bucket")
	}
	if err := r.kv.Put(ctx, key, data); err != nil {
		return errors.WrapTransient(err, "store", "indexRemove", "write index bucket")
	}
	if r.idxCache != nil {
		r.idxCache.Set(key, kept)
	}
	return nil
}

// insertIndexEntries adds a fresh record to every configured index. Failures
// degrade findBy completeness, not the write itself: logged and counted.
func (r *Repository[T]) insertIndexEntries(ctx context.Context, m map[string]any, id string) {
	for _, field := range r.desc.IndexFields {
		val, ok := indexValue(m[field])
		if !ok {
			continue
		}
		if err := r.indexAdd(ctx, field, val, id); err != nil {
			r.logger.Warn("index insert failed", "field", field, "record_id", id, "error", err)
			r.metrics.RecordIndexWarning(r.desc.Table, field)
		}
	}
}

// repairIndexEntries reflects an update in the indexes: for every indexed
// field whose value differs between the old and new record, the id moves
// from the old-value bucket to the new-value bucket exactly once.
func (r *Repository[T]) repairIndexEntries(ctx context.Context, old, updated map[string]any, id string) {
	for _, field := range r.desc.IndexFields {
		oldVal, oldOK := indexValue(old[field])
		newVal, newOK := indexValue(updated[field])
		if oldOK == newOK && oldVal == newVal {
			continue
		}
		if oldOK {
			if err := r.indexRemove(ctx, field, oldVal, id); err != nil {
				r.logger.Warn("index retract failed", "field", field, "record_id", id, "error", err)
				r.metrics.RecordIndexWarning(r.desc.Table, field)
			}
		}
		if newOK {
			if err := r.indexAdd(ctx, field, newVal, id); err != nil {
				r.logger.Warn("index insert failed", "field", field, "record_id", id, "error", err)
				r.metrics.RecordIndexWarning(r.desc.Table, field)
			}
		}
	}
}

// removeIndexEntries retracts a deleted record from every index using its
// pre-delete values.
func (r *Repository[T]) removeIndexEntries(ctx context.Context, old map[string]any, id string) {
	for _, field := range r.desc.IndexFields {
		val, ok := indexValue(old[field])
		if !ok {
			continue
		}
		if err := r.indexRemove(ctx, field, val, id); err != nil {
			r.logger.Warn("index retract failed", "field", field, "record_id", id, "error", err)
			r.metrics.RecordIndexWarning(r.desc.Table, field)
		}
	}
}
