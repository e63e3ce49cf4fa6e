// Package store holds the entity store and the relationship store:
// the per-type keyed record maps and the named directed-edge index
// that sit at the center of the provider.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"eve.evalgo.org/schema"
	"eve.evalgo.org/semantic/runtime"
)

// typeTable is a per-type insertion-ordered map.
type typeTable struct {
	order   []string
	records map[string]*runtime.Entity
}

func newTypeTable() *typeTable {
	return &typeTable{records: make(map[string]*runtime.Entity)}
}

// EntityStore keeps every record of every type, insertion-ordered
// per type.
type EntityStore struct {
	mu    sync.RWMutex
	types map[string]*typeTable
	now   func() time.Time
}

func NewEntityStore() *EntityStore {
	return &EntityStore{types: make(map[string]*typeTable), now: time.Now}
}

func (s *EntityStore) table(typeName string) *typeTable {
	t, ok := s.types[typeName]
	if !ok {
		t = newTypeTable()
		s.types[typeName] = t
	}
	return t
}

// Get returns the record's projection with $id/$type re-attached, or
// nil if absent.
func (s *EntityStore) Get(typeName, id string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[typeName]
	if !ok {
		return nil
	}
	e, ok := t.records[id]
	if !ok {
		return nil
	}
	return e.Projection()
}

// GetEntity returns the internal record (not a projection) for use by
// other components (embedding, relation cleanup) that need CreatedAt/
// UpdatedAt alongside fields.
func (s *EntityStore) GetEntity(typeName, id string) *runtime.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[typeName]
	if !ok {
		return nil
	}
	return t.records[id]
}

// ListOptions controls List's where/orderBy/offset/limit behavior.
type ListOptions struct {
	Where   map[string]any
	OrderBy []OrderTerm
	Offset  int
	Limit   int
}

// OrderTerm is one orderBy clause; ascending unless Desc is set.
type OrderTerm struct {
	Field string
	Desc  bool
}

// List applies where (equality filter over validated field names),
// sorts by orderBy, then applies offset and limit.
// Undefined values sort last ascending / first descending.
func (s *EntityStore) List(typeName string, opts ListOptions) ([]map[string]any, error) {
	for field := range opts.Where {
		if err := schema.ValidateFieldName(field); err != nil {
			return nil, err
		}
	}
	for _, ot := range opts.OrderBy {
		if err := schema.ValidateFieldName(ot.Field); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[typeName]
	if !ok {
		return []map[string]any{}, nil
	}
	entities := make([]*runtime.Entity, 0, len(t.order))
	for _, id := range t.order {
		e := t.records[id]
		if e != nil && matchesWhere(e, opts.Where) {
			entities = append(entities, e)
		}
	}

	sortEntities(entities, opts.OrderBy)

	start := opts.Offset
	if start > len(entities) {
		start = len(entities)
	}
	end := len(entities)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}

	out := make([]map[string]any, 0, end-start)
	for _, e := range entities[start:end] {
		out = append(out, e.Projection())
	}
	return out, nil
}

func matchesWhere(e *runtime.Entity, where map[string]any) bool {
	for field, want := range where {
		got, ok := e.Fields[field]
		if !ok || !equalValue(got, want) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	return asComparable(a) == asComparable(b)
}

// asComparable normalizes JSON-decoded numeric types (float64 vs int)
// so where-filters behave consistently regardless of the caller's
// literal Go type.
func asComparable(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return v
	}
}

func sortEntities(entities []*runtime.Entity, orderBy []OrderTerm) {
	if len(orderBy) == 0 {
		return
	}
	sort.SliceStable(entities, func(i, j int) bool {
		for _, ot := range orderBy {
			vi, oki := entities[i].Fields[ot.Field]
			vj, okj := entities[j].Fields[ot.Field]
			switch {
			case !oki && !okj:
				continue
			case !oki:
				return ot.Desc
			case !okj:
				return !ot.Desc
			}
			cmp := compareValues(vi, vj)
			if cmp == 0 {
				continue
			}
			if ot.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	}
	return 0
}

// SearchOptions controls Search's field scope and score threshold.
type SearchOptions struct {
	Fields   []string
	MinScore float64
}

// SearchResult pairs a record projection with its substring score.
type SearchResult struct {
	Record map[string]any
	Score  float64
}

// Search performs case-insensitive substring matching over the union
// of named fields (or $all = serialized record minus sensitive keys),
// scoring 1 - firstHitIndex/textLen, sorted descending and filtered by
// minScore.
func (s *EntityStore) Search(typeName, query string, opts SearchOptions) []SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[typeName]
	if !ok {
		return nil
	}
	entities := make([]*runtime.Entity, 0, len(t.order))
	for _, id := range t.order {
		entities = append(entities, t.records[id])
	}

	lowerQuery := strings.ToLower(query)
	var results []SearchResult
	for _, e := range entities {
		text := e.ContentText(opts.Fields)
		lowerText := strings.ToLower(text)
		idx := strings.Index(lowerText, lowerQuery)
		if idx < 0 {
			continue
		}
		textLen := len(lowerText)
		score := 1.0
		if textLen > 0 {
			score = 1.0 - float64(idx)/float64(textLen)
		}
		if score < opts.MinScore {
			continue
		}
		results = append(results, SearchResult{Record: e.Projection(), Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// Create assigns a UUID-v4 id if id is empty, refuses a duplicate id,
// and stamps CreatedAt/UpdatedAt. It returns the stored entity;
// callers (provider) own the embedding and eventing side effects.
func (s *EntityStore) Create(typeName, id string, data map[string]any) (*runtime.Entity, error) {
	if err := schema.ValidateTypeName(typeName); err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.New().String()
	} else if err := schema.ValidateEntityID(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(typeName)
	if _, exists := t.records[id]; exists {
		return nil, schema.New(schema.KindAlreadyExists, "entity already exists: "+typeName+"/"+id)
	}

	now := s.now()
	e := runtime.NewEntity(typeName, id, data, now)
	t.records[id] = e
	t.order = append(t.order, id)
	return e, nil
}

// Update merges patch into the existing record and refreshes
// UpdatedAt. Returns NOT_FOUND if the entity is missing.
func (s *EntityStore) Update(typeName, id string, patch map[string]any) (*runtime.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.types[typeName]
	if !ok {
		return nil, schema.New(schema.KindNotFound, "entity not found: "+typeName+"/"+id)
	}
	e, ok := t.records[id]
	if !ok {
		return nil, schema.New(schema.KindNotFound, "entity not found: "+typeName+"/"+id)
	}
	// Copy-on-write: previously returned internal pointers stay
	// consistent while the table swaps in the merged record.
	merged := e.DeepCopy()
	merged.Merge(patch, s.now())
	t.records[id] = merged
	return merged, nil
}

// Replace swaps the record's entire field bag, preserving CreatedAt
// and refreshing UpdatedAt. Migrations use this for operations a
// merge cannot express (removing or renaming keys).
func (s *EntityStore) Replace(typeName, id string, fields map[string]any) (*runtime.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.types[typeName]
	if !ok {
		return nil, schema.New(schema.KindNotFound, "entity not found: "+typeName+"/"+id)
	}
	e, ok := t.records[id]
	if !ok {
		return nil, schema.New(schema.KindNotFound, "entity not found: "+typeName+"/"+id)
	}
	replaced := runtime.NewEntity(typeName, id, fields, s.now())
	replaced.CreatedAt = e.CreatedAt
	t.records[id] = replaced
	return replaced, nil
}

// Delete removes the record if present. A missing entity returns
// false, not an error.
func (s *EntityStore) Delete(typeName, id string) (*runtime.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.types[typeName]
	if !ok {
		return nil, false
	}
	e, ok := t.records[id]
	if !ok {
		return nil, false
	}
	delete(t.records, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return e, true
}

// Exists reports whether (type, id) is present, used by the
// transaction buffer's read-through get.
func (s *EntityStore) Exists(typeName, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[typeName]
	if !ok {
		return false
	}
	_, ok = t.records[id]
	return ok
}
