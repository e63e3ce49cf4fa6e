// Redis adapter: one string key per record holding its JSON fields,
// plus one set per entity type listing its ids. List/Search walk the
// type's id set in-process since Redis has no native relational filter.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"eve.evalgo.org/schema"
	"eve.evalgo.org/store"
)

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	RedisURL  string
	KeyPrefix string // defaults to "entitystore:"
}

// RedisStore is the Store adapter backed by Redis/Valkey/
// DragonflyDB.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore parses cfg.RedisURL and opens a client.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	url := cfg.RedisURL
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "entitystore:"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (r *RedisStore) key(typeName, id string) string {
	return r.prefix + typeName + ":" + id
}

func (r *RedisStore) setKey(typeName string) string {
	return r.prefix + typeName + ":ids"
}

// Get fetches and decodes one record.
func (r *RedisStore) Get(ctx context.Context, typeName, id string) (map[string]any, error) {
	data, err := r.client.Get(ctx, r.key(typeName, id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s/%s: %w", typeName, id, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("redis decode %s/%s: %w", typeName, id, err)
	}
	fields["$id"] = id
	fields["$type"] = typeName
	return fields, nil
}

// List fetches every id in the type's id-set and applies where/
// offset/limit in-process (see applyListOptions; OrderBy is not
// applied).
func (r *RedisStore) List(ctx context.Context, typeName string, opts store.ListOptions) ([]map[string]any, error) {
	for field := range opts.Where {
		if err := schema.ValidateFieldName(field); err != nil {
			return nil, err
		}
	}
	ids, err := r.client.SMembers(ctx, r.setKey(typeName)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", typeName, err)
	}
	var out []map[string]any
	for _, id := range ids {
		rec, err := r.Get(ctx, typeName, id)
		if err != nil || rec == nil {
			continue
		}
		out = append(out, rec)
	}
	return applyListOptions(out, opts), nil
}

// Search scans every record of typeName for the query substring,
// ; Redis has no native substring index so this is a full
// in-process scan, same as the default in-memory store behavior.
func (r *RedisStore) Search(ctx context.Context, typeName, query string, opts store.SearchOptions) ([]store.SearchResult, error) {
	records, err := r.List(ctx, typeName, store.ListOptions{})
	if err != nil {
		return nil, err
	}
	lowerQuery := strings.ToLower(query)
	var out []store.SearchResult
	for _, rec := range records {
		text := fmt.Sprint(rec)
		lowerText := strings.ToLower(text)
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

// Create writes a new record, refusing a pre-existing id via SETNX.
func (r *RedisStore) Create(ctx context.Context, typeName, id string, data map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	ok, err := r.client.SetNX(ctx, r.key(typeName, id), payload, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s/%s: %w", typeName, id, err)
	}
	if !ok {
		return nil, schema.New(schema.KindAlreadyExists, "entity already exists: "+typeName+"/"+id)
	}
	if err := r.client.SAdd(ctx, r.setKey(typeName), id).Err(); err != nil {
		return nil, fmt.Errorf("redis sadd %s/%s: %w", typeName, id, err)
	}
	return r.Get(ctx, typeName, id)
}

// Update merges the patch and overwrites the value.
func (r *RedisStore) Update(ctx context.Context, typeName, id string, patch map[string]any) (map[string]any, error) {
	current, err := r.Get(ctx, typeName, id)
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
	if err := r.client.Set(ctx, r.key(typeName, id), payload, 0).Err(); err != nil {
		return nil, fmt.Errorf("redis set %s/%s: %w", typeName, id, err)
	}
	return r.Get(ctx, typeName, id)
}

// Delete removes the key and drops it from the id-set. A missing
// record returns false, not an error.
func (r *RedisStore) Delete(ctx context.Context, typeName, id string) (bool, error) {
	n, err := r.client.Del(ctx, r.key(typeName, id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del %s/%s: %w", typeName, id, err)
	}
	if n == 0 {
		return false, nil
	}
	r.client.SRem(ctx, r.setKey(typeName), id)
	return true, nil
}

// Close releases the underlying client connection.
func (r *RedisStore) Close() error { return r.client.Close() }
