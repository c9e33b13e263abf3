package store

import (
	"context"
	"reflect"
	"sort"
	"strings"

	"github.com/fulqrun/crmstore/errors"
)

// Direction orders FindAll results.
type Direction string

// Sort directions.
const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// FindOptions parameterizes FindAll: an equality-filter map, a sort field
// with direction, and offset/limit pagination.
type FindOptions struct {
	Filters        map[string]any
	OrderBy        string
	OrderDirection Direction
	Limit          int // <= 0 means no limit
	Offset         int
}

// FindAll returns the matching page plus the total post-filter count.
// When a filter references an indexed field the lookup routes through that
// index; otherwise it falls back to a full prefix scan, which costs O(n)
// substrate round-trips.
func (r *Repository[T]) FindAll(ctx context.Context, opts FindOptions) ([]T, int, error) {
	matches, err := r.findMaps(ctx, opts.Filters)
	if err != nil {
		return nil, 0, err
	}
	total := len(matches)

	if opts.OrderBy != "" {
		sortMaps(matches, opts.OrderBy, opts.OrderDirection)
	}

	page := paginate(matches, opts.Offset, opts.Limit)
	out := make([]T, 0, len(page))
	for _, m := range page {
		entity, err := fromMap[T](m)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, entity)
	}

	r.metrics.RecordOperation(r.desc.Table, "find_all")
	return out, total, nil
}

// Count returns FindAll's cardinality without materializing a page.
func (r *Repository[T]) Count(ctx context.Context, filters map[string]any) (int, error) {
	matches, err := r.findMaps(ctx, filters)
	if err != nil {
		return 0, err
	}
	r.metrics.RecordOperation(r.desc.Table, "count")
	return len(matches), nil
}

// findMaps resolves candidate records and applies the equality filters.
func (r *Repository[T]) findMaps(ctx context.Context, filters map[string]any) ([]map[string]any, error) {
	ids, routed, err := r.candidateIDs(ctx, filters)
	if err != nil {
		return nil, err
	}

	matches := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		m, found, err := r.loadMap(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			if routed {
				r.logger.Debug("stale index entry", "record_id", id)
			}
			continue
		}
		if matchesFilters(m, filters) {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// candidateIDs picks the cheapest candidate set: the first indexed filter
// field when one exists, otherwise every record under the table prefix.
// routed reports whether an index was used.
func (r *Repository[T]) candidateIDs(ctx context.Context, filters map[string]any) ([]string, bool, error) {
	for _, field := range r.desc.IndexFields {
		raw, present := filters[field]
		if !present {
			continue
		}
		// Null values never enter an index bucket, so a nil filter
		// cannot route through one; let the scan path match it.
		val, ok := indexValue(normalizeValue(raw))
		if !ok {
			continue
		}
		ids, err := r.indexGet(ctx, field, val)
		if err != nil {
			return nil, false, err
		}
		return ids, true, nil
	}

	keys, err := r.kv.Keys(ctx, RecordPrefix(r.desc.Table))
	if err != nil {
		return nil, false, errors.WrapTransient(err, "store", "FindAll", "list table keys")
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if id, ok := IDFromRecordKey(r.desc.Table, key); ok {
			ids = append(ids, id)
		}
	}
	return ids, false, nil
}

// matchesFilters applies every equality filter against the record map.
func matchesFilters(m map[string]any, filters map[string]any) bool {
	for field, want := range filters {
		if !valueEqual(m[field], normalizeValue(want)) {
			return false
		}
	}
	return true
}

// valueEqual compares two JSON-normalized values.
func valueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := asNumber(a); aok {
		if bf, bok := asNumber(b); bok {
			return af == bf
		}
		return false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return reflect.DeepEqual(a, b)
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// sortMaps orders records by a field. Numbers sort numerically, strings
// lexically (RFC3339 timestamps sort correctly that way), booleans
// false-first; records missing the field sort first.
func sortMaps(maps []map[string]any, field string, dir Direction) {
	desc := dir == Descending
	sort.SliceStable(maps, func(i, j int) bool {
		less := compareValues(maps[i][field], maps[j][field]) < 0
		if desc {
			return compareValues(maps[j][field], maps[i][field]) < 0
		}
		return less
	})
}

func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if af, aok := asNumber(a); aok {
		if bf, bok := asNumber(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs)
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	// Mixed types: stable but arbitrary.
	return 0
}

func paginate(maps []map[string]any, offset, limit int) []map[string]any {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(maps) {
		return nil
	}
	end := len(maps)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return maps[offset:end]
}
