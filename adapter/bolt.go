// bbolt adapter: one bucket per entity type, JSON-encoded records.
// It is the embedded durable tier that needs no external service;
// cmd/entitystored uses it only when the bolt backend is selected (the
// default backend there is memory).
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"eve.evalgo.org/schema"
	"eve.evalgo.org/store"
)

// BoltStore is the Store adapter backed by an embedded bbolt file,
// requiring no external service.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the bbolt file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt open: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func bucketName(typeName string) []byte { return []byte("entity_" + typeName) }

func (b *BoltStore) ensureBucket(typeName string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName(typeName))
		return err
	})
}

// Get fetches and decodes one record, or nil if absent.
func (b *BoltStore) Get(ctx context.Context, typeName, id string) (map[string]any, error) {
	var fields map[string]any
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(typeName))
		if bucket == nil {
			return nil
		}
		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &fields)
	})
	if err != nil {
		return nil, fmt.Errorf("bolt get %s/%s: %w", typeName, id, err)
	}
	if fields == nil {
		return nil, nil
	}
	fields["$id"] = id
	fields["$type"] = typeName
	return fields, nil
}

// List scans the type's bucket and applies where/offset/limit
// in-process (see applyListOptions; OrderBy is not applied).
func (b *BoltStore) List(ctx context.Context, typeName string, opts store.ListOptions) ([]map[string]any, error) {
	for field := range opts.Where {
		if err := schema.ValidateFieldName(field); err != nil {
			return nil, err
		}
	}
	var out []map[string]any
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(typeName))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var fields map[string]any
			if err := json.Unmarshal(v, &fields); err != nil {
				return nil
			}
			fields["$id"] = string(k)
			fields["$type"] = typeName
			out = append(out, fields)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt list %s: %w", typeName, err)
	}
	return applyListOptions(out, opts), nil
}

// Search scans the type's bucket for the query substring; bbolt has
// no native index, so this mirrors the other adapters' in-process
// fallback.
func (b *BoltStore) Search(ctx context.Context, typeName, query string, opts store.SearchOptions) ([]store.SearchResult, error) {
	records, err := b.List(ctx, typeName, store.ListOptions{})
	if err != nil {
		return nil, err
	}
	lowerQuery := strings.ToLower(query)
	var out []store.SearchResult
	for _, rec := range records {
		lowerText := strings.ToLower(fmt.Sprint(rec))
		idx := strings.Index(lowerText, lowerQuery)
		if idx < 0 {
			continue
		}
		score := 1.0 - float64(idx)/float64(len(lowerText))
		if score < opts.MinScore {
			continue
		}
		out = append(out, store.SearchResult{Record: rec, Score: score})
	}
	return out, nil
}

// Create writes a new record, refusing a pre-existing id.
func (b *BoltStore) Create(ctx context.Context, typeName, id string, data map[string]any) (map[string]any, error) {
	if err := b.ensureBucket(typeName); err != nil {
		return nil, fmt.Errorf("bolt ensure bucket %s: %w", typeName, err)
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(typeName))
		if bucket.Get([]byte(id)) != nil {
			return schema.New(schema.KindAlreadyExists, "entity already exists: "+typeName+"/"+id)
		}
		return bucket.Put([]byte(id), payload)
	})
	if err != nil {
		return nil, err
	}
	return b.Get(ctx, typeName, id)
}

// Update merges the patch into the stored record.
func (b *BoltStore) Update(ctx context.Context, typeName, id string, patch map[string]any) (map[string]any, error) {
	current, err := b.Get(ctx, typeName, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, schema.New(schema.KindNotFound, "entity not found: "+typeName+"/"+id)
	}
	delete(current, "$id")
	delete(current, "$type")
	for k, v := range patch {
		current[k] = v
	}
	payload, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(typeName))
		if bucket == nil {
			return schema.New(schema.KindNotFound, "entity not found: "+typeName+"/"+id)
		}
		return bucket.Put([]byte(id), payload)
	})
	if err != nil {
		return nil, err
	}
	return b.Get(ctx, typeName, id)
}

// Delete removes the key. A missing record returns false, not an
// error.
func (b *BoltStore) Delete(ctx context.Context, typeName, id string) (bool, error) {
	existed := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(typeName))
		if bucket == nil {
			return nil
		}
		if bucket.Get([]byte(id)) == nil {
			return nil
		}
		existed = true
		return bucket.Delete([]byte(id))
	})
	if err != nil {
		return false, fmt.Errorf("bolt delete %s/%s: %w", typeName, id, err)
	}
	return existed, nil
}

// Close releases the underlying file handle.
func (b *BoltStore) Close() error { return b.db.Close() }
