package crm

import (
	"context"

	"github.com/fulqrun/crmstore/migrate"
	"github.com/fulqrun/crmstore/store"
)

// DefaultMigrations returns the built-in migration set. Version 1 is the
// baseline marker for the initial flat-namespace layout; it transforms
// nothing but pins the layout version in the history document so later
// migrations have a fixed starting point.
func DefaultMigrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version:     1,
			Description: "initial flat-namespace layout",
			Up: func(ctx context.Context, kv store.KV) error {
				return nil
			},
		},
	}
}
