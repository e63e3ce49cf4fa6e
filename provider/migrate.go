package provider

import (
	"context"

	"eve.evalgo.org/migration"
	"eve.evalgo.org/schema"
)

// Migrate runs migrations against this provider's entity store,
// halting on the first failing operation. Target nil migrates to the
// highest provided version; a lower target runs down operations.
func (p *Provider) Migrate(ctx context.Context, migrations []migration.Migration, target *int) (*migration.Result, error) {
	return migration.NewExecutor(p.Entities, p.Schema).Migrate(ctx, migrations, target)
}

// SchemaVersion reports the currently applied schema version, 0 when
// no migration has run yet.
func (p *Provider) SchemaVersion() int {
	return migration.NewExecutor(p.Entities, p.Schema).CurrentVersion()
}

// DiffSchema compares this provider's live schema against proposed.
func (p *Provider) DiffSchema(proposed *schema.Schema) *schema.Diff {
	return schema.CompareSchemas(p.Schema, proposed)
}
