// Package runtime defines the wire-level record types shared across
// the entity store: Entity, Event, and Action. Each splits an open
// field map from a handful of typed reserved keys: the map holds
// every field actually present, the typed fields get fast access.
package runtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReservedFieldKeys are the keys never present inside Entity.Fields;
// they are re-attached on the outbound projection instead.
var ReservedFieldKeys = map[string]bool{
	"$id": true, "$type": true, "$score": true,
	"$rrfScore": true, "$ftsRank": true, "$semanticRank": true,
}

// Entity is the provider's record type: a typed record under a
// declared entity type, plus an open field bag. (type, id) is unique;
// CreatedAt is immutable after creation.
type Entity struct {
	ID        string
	Type      string
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEntity constructs an Entity, stripping any reserved keys that
// might have been present in the caller's input map.
func NewEntity(typeName, id string, fields map[string]any, now time.Time) *Entity {
	e := &Entity{ID: id, Type: typeName, Fields: make(map[string]any, len(fields)), CreatedAt: now, UpdatedAt: now}
	for k, v := range fields {
		if ReservedFieldKeys[k] {
			continue
		}
		e.Fields[k] = v
	}
	return e
}

// Merge applies patch on top of the entity's fields, overwriting
// matching keys and leaving the rest untouched, then refreshes
// UpdatedAt. Reserved keys in patch are ignored.
func (e *Entity) Merge(patch map[string]any, now time.Time) {
	for k, v := range patch {
		if ReservedFieldKeys[k] {
			continue
		}
		e.Fields[k] = v
	}
	e.UpdatedAt = now
}

// Projection is the read-only shape returned to callers: Fields plus
// the reserved keys re-attached.
func (e *Entity) Projection() map[string]any {
	out := make(map[string]any, len(e.Fields)+4)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["$id"] = e.ID
	out["$type"] = e.Type
	return out
}

// DeepCopy returns an independent copy of the entity via a marshal/
// unmarshal round trip, so later mutation of the stored record cannot
// leak through a previously returned projection.
func (e *Entity) DeepCopy() *Entity {
	data, err := json.Marshal(e.Fields)
	if err != nil {
		return &Entity{ID: e.ID, Type: e.Type, Fields: map[string]any{}, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		fields = map[string]any{}
	}
	return &Entity{ID: e.ID, Type: e.Type, Fields: fields, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}

// ContentText concatenates the given field values for embedding/FTS
// purposes. With no fields named it falls back to the serialized
// record, minus the reserved keys.
func (e *Entity) ContentText(fields []string) string {
	if len(fields) == 0 {
		return e.serializedFields()
	}
	var parts []string
	for _, f := range fields {
		if v, ok := e.Fields[f]; ok {
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return joinTrim(parts)
}

// serializedFields JSON-serializes the full field map so every value
// (numbers, booleans, arrays, nested objects) is matchable, in
// sorted-key order so the result is stable for an unchanged entity —
// the embedding policy's skip-if-unchanged source hash depends on
// that stability.
func (e *Entity) serializedFields() string {
	clean := make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		if ReservedFieldKeys[k] {
			continue
		}
		clean[k] = v
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return ""
	}
	return string(data)
}

func joinTrim(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}
