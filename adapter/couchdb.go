// CouchDB adapter. Records are stored as documents keyed by a
// "{type}/{id}" path so one database holds every entity type.
package adapter

import (
	"context"
	"fmt"
	"strings"

	kivik "github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"

	"eve.evalgo.org/schema"
	"eve.evalgo.org/store"
)

// CouchDBStore is the Store adapter backed by CouchDB.
type CouchDBStore struct {
	client   *kivik.Client
	database *kivik.DB
}

// NewCouchDBStore connects to url and ensures dbName exists.
func NewCouchDBStore(ctx context.Context, url, dbName string) (*CouchDBStore, error) {
	client, err := kivik.New("couch", url)
	if err != nil {
		return nil, fmt.Errorf("couchdb connect: %w", err)
	}
	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		return nil, fmt.Errorf("couchdb db exists: %w", err)
	}
	if !exists {
		if err := client.CreateDB(ctx, dbName); err != nil {
			return nil, fmt.Errorf("couchdb create db: %w", err)
		}
	}
	return &CouchDBStore{client: client, database: client.DB(dbName)}, nil
}

func docID(typeName, id string) string { return typeName + "/" + id }

// Get fetches the document at {type}/{id}, or nil if absent.
func (c *CouchDBStore) Get(ctx context.Context, typeName, id string) (map[string]any, error) {
	row := c.database.Get(ctx, docID(typeName, id))
	var doc map[string]any
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return nil, nil
		}
		return nil, fmt.Errorf("couchdb get %s: %w", docID(typeName, id), err)
	}
	return projectDoc(typeName, id, doc), nil
}

// List scans all_docs for the type prefix and applies where/offset/
// limit in-process (see applyListOptions; OrderBy is not applied),
// since CouchDB's core views do not offer a relational filter surface
// equivalent to the in-memory store's.
func (c *CouchDBStore) List(ctx context.Context, typeName string, opts store.ListOptions) ([]map[string]any, error) {
	for field := range opts.Where {
		if err := schema.ValidateFieldName(field); err != nil {
			return nil, err
		}
	}
	rows := c.database.AllDocs(ctx, kivik.Param("include_docs", true))
	defer rows.Close()

	prefix := typeName + "/"
	var out []map[string]any
	for rows.Next() {
		key := rows.Key()
		id := strings.Trim(key, "\"")
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		var doc map[string]any
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		out = append(out, projectDoc(typeName, strings.TrimPrefix(id, prefix), doc))
	}
	return applyListOptions(out, opts), nil
}

// applyListOptions is shared in-process filtering for adapters whose
// native query surface does not cover the full Store contract. It
// applies Where (plain equality), then Offset and Limit; opts.OrderBy
// is ignored, so records keep the order the backend returned them in.
func applyListOptions(records []map[string]any, opts store.ListOptions) []map[string]any {
	var filtered []map[string]any
	for _, r := range records {
		match := true
		for field, want := range opts.Where {
			if r[field] != want {
				match = false
				break
			}
		}
		if match {
			filtered = append(filtered, r)
		}
	}
	start := opts.Offset
	if start > len(filtered) {
		start = len(filtered)
	}
	end := len(filtered)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return filtered[start:end]
}

// Search performs the case-insensitive substring scan in-process over
// documents fetched via List, since CouchDB's core view engine has no
// native substring operator.
func (c *CouchDBStore) Search(ctx context.Context, typeName, query string, opts store.SearchOptions) ([]store.SearchResult, error) {
	records, err := c.List(ctx, typeName, store.ListOptions{})
	if err != nil {
		return nil, err
	}
	lowerQuery := strings.ToLower(query)
	var out []store.SearchResult
	for _, r := range records {
		text := fmt.Sprint(r)
		lowerText := strings.ToLower(text)
		idx := strings.Index(lowerText, lowerQuery)
		if idx < 0 {
			continue
		}
		score := 1.0 - float64(idx)/float64(len(lowerText))
		if score < opts.MinScore {
			continue
		}
		out = append(out, store.SearchResult{Record: r, Score: score})
	}
	return out, nil
}

// Create stores a new document, refusing a pre-existing one.
func (c *CouchDBStore) Create(ctx context.Context, typeName, id string, data map[string]any) (map[string]any, error) {
	existing, err := c.Get(ctx, typeName, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, schema.New(schema.KindAlreadyExists, "entity already exists: "+typeName+"/"+id)
	}
	doc := cloneFields(data)
	if _, err := c.database.Put(ctx, docID(typeName, id), doc); err != nil {
		return nil, fmt.Errorf("couchdb put %s: %w", docID(typeName, id), err)
	}
	return projectDoc(typeName, id, doc), nil
}

// Update fetches the current revision, merges the patch, and writes a
// new revision.
func (c *CouchDBStore) Update(ctx context.Context, typeName, id string, patch map[string]any) (map[string]any, error) {
	row := c.database.Get(ctx, docID(typeName, id))
	var doc map[string]any
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return nil, schema.New(schema.KindNotFound, "entity not found: "+typeName+"/"+id)
		}
		return nil, fmt.Errorf("couchdb get %s: %w", docID(typeName, id), err)
	}
	for k, v := range patch {
		doc[k] = v
	}
	if _, err := c.database.Put(ctx, docID(typeName, id), doc); err != nil {
		return nil, fmt.Errorf("couchdb update %s: %w", docID(typeName, id), err)
	}
	return projectDoc(typeName, id, doc), nil
}

// Delete removes the document at {type}/{id}. A missing document
// returns false, not an error.
func (c *CouchDBStore) Delete(ctx context.Context, typeName, id string) (bool, error) {
	row := c.database.Get(ctx, docID(typeName, id))
	var doc map[string]any
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return false, nil
		}
		return false, fmt.Errorf("couchdb get %s: %w", docID(typeName, id), err)
	}
	rev, _ := doc["_rev"].(string)
	if _, err := c.database.Delete(ctx, docID(typeName, id), rev); err != nil {
		return false, fmt.Errorf("couchdb delete %s: %w", docID(typeName, id), err)
	}
	return true, nil
}

// Close releases the underlying client connection.
func (c *CouchDBStore) Close() error { return c.client.Close() }

func projectDoc(typeName, id string, doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc)+2)
	for k, v := range doc {
		if k == "_id" || k == "_rev" {
			continue
		}
		out[k] = v
	}
	out["$id"] = id
	out["$type"] = typeName
	return out
}

func cloneFields(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
