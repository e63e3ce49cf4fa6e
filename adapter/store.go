// Package adapter defines the persistent-store adapter contract for
// durable backends and provides four concrete implementations against
// backends already present in the module's dependency set: CouchDB,
// Postgres, Redis, and an embedded bbolt
// tier. Each adapter converts its native row/document shape into the
// provider's `{$id, $type, ...}` projection and escapes substring
// queries.
package adapter

import (
	"context"
	"fmt"

	"eve.evalgo.org/schema"
	"eve.evalgo.org/store"
)

// Store is the shared read/write surface every adapter implements,
// mirroring provider.Provider's entity-facing methods so any adapter
// can be dropped in behind the same callers.
type Store interface {
	Get(ctx context.Context, typeName, id string) (map[string]any, error)
	List(ctx context.Context, typeName string, opts store.ListOptions) ([]map[string]any, error)
	Search(ctx context.Context, typeName, query string, opts store.SearchOptions) ([]store.SearchResult, error)
	Create(ctx context.Context, typeName, id string, data map[string]any) (map[string]any, error)
	Update(ctx context.Context, typeName, id string, data map[string]any) (map[string]any, error)
	Delete(ctx context.Context, typeName, id string) (bool, error)
}

// NewCapabilityError builds the CAPABILITY_NOT_SUPPORTED error an
// adapter returns from a method its backend cannot serve, naming a
// suggested alternative. The four bundled adapters implement the full
// Store surface; this exists for integrator-written adapters over
// narrower backends.
func NewCapabilityError(method, alternative string) error {
	return schema.New(schema.KindCapabilityNotSupported, fmt.Sprintf("%s is not supported by this adapter; try %s", method, alternative))
}
