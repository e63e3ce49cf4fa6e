package main

import (
	"context"
	"fmt"

	"eve.evalgo.org/adapter"
	"eve.evalgo.org/config"
	"eve.evalgo.org/provider"
	"eve.evalgo.org/store"
)

// stripEnvelope removes the $id/$type projection fields so a record
// can be re-submitted as the data payload of a Create/Update call.
func stripEnvelope(rec map[string]any) map[string]any {
	data := make(map[string]any, len(rec))
	for k, v := range rec {
		if k == "$id" || k == "$type" {
			continue
		}
		data[k] = v
	}
	return data
}

// loadSnapshot warms the provider's in-memory store from backing, for
// every entity type the loaded schema declares.
func loadSnapshot(ctx context.Context, p *provider.Provider, backing adapter.Store) error {
	for _, typeName := range p.Schema.EntityOrder {
		records, err := backing.List(ctx, typeName, store.ListOptions{})
		if err != nil {
			return fmt.Errorf("loading snapshot for %s: %w", typeName, err)
		}
		for _, rec := range records {
			id, _ := rec["$id"].(string)
			if id == "" {
				continue
			}
			if _, err := p.Create(ctx, typeName, id, stripEnvelope(rec)); err != nil {
				return fmt.Errorf("restoring %s/%s: %w", typeName, id, err)
			}
		}
	}
	return nil
}

// saveSnapshot mirrors the provider's current in-memory state into
// backing, upserting every record per known entity type.
func saveSnapshot(ctx context.Context, p *provider.Provider, backing adapter.Store) error {
	for _, typeName := range p.Schema.EntityOrder {
		records, err := p.List(typeName, store.ListOptions{})
		if err != nil {
			return fmt.Errorf("listing %s for snapshot: %w", typeName, err)
		}
		for _, rec := range records {
			id, _ := rec["$id"].(string)
			if id == "" {
				continue
			}
			data := stripEnvelope(rec)
			if _, err := backing.Update(ctx, typeName, id, data); err != nil {
				if _, err := backing.Create(ctx, typeName, id, data); err != nil {
					return fmt.Errorf("persisting %s/%s: %w", typeName, id, err)
				}
			}
		}
	}
	return nil
}

// openBacking constructs the configured adapter.Store, or nil if the
// backend is "memory" (no durable tier).
func openBacking(ctx context.Context, cfg StoreConfig) (adapter.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return nil, nil
	case "bolt":
		return adapter.OpenBoltStore(cfg.DSN)
	case "postgres":
		return adapter.NewPostgresStore(cfg.DSN)
	case "redis":
		return adapter.NewRedisStore(ctx, adapter.RedisConfig{RedisURL: cfg.DSN})
	case "couchdb":
		url, dbName := cfg.DSN, cfg.CouchDBDatabase
		if url == "" {
			dbCfg := config.LoadDatabaseConfig("ENTITYSTORED_DB")
			url = dbCfg.URL
			if dbCfg.Database != "" {
				dbName = dbCfg.Database
			}
		}
		return adapter.NewCouchDBStore(ctx, url, dbName)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}
