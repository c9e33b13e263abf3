package store

import (
	"context"
	"encoding/json"

	"github.com/fulqrun/crmstore/errors"
)

// Dump returns every record of the table as raw field maps, for snapshot
// export. Order is not defined.
func (r *Repository[T]) Dump(ctx context.Context) ([]map[string]any, error) {
	return r.findMaps(ctx, nil)
}

// Restore writes a record map preserving its id and timestamps, validating
// and indexing it exactly like a create. Snapshot import uses it to rebuild
// a table record for record; referenced tables must be restored first so
// foreign-key checks see their targets.
func (r *Repository[T]) Restore(ctx context.Context, m map[string]any) error {
	id, _ := m["id"].(string)
	if id == "" {
		return errors.WrapInvalid(errors.ErrKeyNotFound, "store", "Restore", "record has no id")
	}

	if err := r.validate(ctx, "Restore", m); err != nil {
		return err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return errors.WrapFatal(err, "store", "Restore", "encode record")
	}
	if err := r.kv.Put(ctx, RecordKey(r.desc.Table, id), data); err != nil {
		return errors.WrapTransient(err, "store", "Restore", "write record")
	}

	r.insertIndexEntries(ctx, m, id)
	r.metrics.RecordOperation(r.desc.Table, "restore")
	return nil
}
