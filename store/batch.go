package store

import (
	"context"
)

// BatchResult carries the per-item outcome of a batch operation. A single
// item's failure does not abort the batch; callers inspect results, or wrap
// the batch in a transaction and abort themselves.
type BatchResult[T any] struct {
	Index  int
	Entity T
	Found  bool // update/delete: whether the record existed
	Err    error
}

// BatchCreate applies Create per item in sequence and collects results.
func (r *Repository[T]) BatchCreate(ctx context.Context, entities []T) []BatchResult[T] {
	results := make([]BatchResult[T], 0, len(entities))
	for i, entity := range entities {
		created, err := r.Create(ctx, entity)
		results = append(results, BatchResult[T]{Index: i, Entity: created, Found: err == nil, Err: err})
	}
	return results
}

// BatchUpdateItem pairs a record id with its partial update.
type BatchUpdateItem struct {
	ID      string
	Changes map[string]any
}

// BatchUpdate applies Update per item in sequence and collects results.
func (r *Repository[T]) BatchUpdate(ctx context.Context, items []BatchUpdateItem) []BatchResult[T] {
	results := make([]BatchResult[T], 0, len(items))
	for i, item := range items {
		updated, found, err := r.Update(ctx, item.ID, item.Changes)
		results = append(results, BatchResult[T]{Index: i, Entity: updated, Found: found, Err: err})
	}
	return results
}

// BatchDelete applies Delete per item in sequence and collects results.
func (r *Repository[T]) BatchDelete(ctx context.Context, ids []string) []BatchResult[T] {
	results := make([]BatchResult[T], 0, len(ids))
	for i, id := range ids {
		found, err := r.Delete(ctx, id)
		results = append(results, BatchResult[T]{Index: i, Found: found, Err: err})
	}
	return results
}
