// Package txn buffers entity writes. Operations stage against a
// read-through view of the underlying store and replay in insertion
// order on commit; rollback discards the buffer.
package txn

import (
	"context"
	"fmt"
	"sync"

	"eve.evalgo.org/schema"
)

// OpKind identifies one buffered operation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
	OpRelate OpKind = "relate"
)

// Op is one entry in the transaction's operation log, replayed in
// insertion order on Commit.
type Op struct {
	Kind     OpKind
	Type     string
	ID       string
	Data     map[string]any
	Relation string
	ToType   string
	ToID     string
}

// Status is the transaction's lifecycle state.
type Status string

const (
	StatusActive     Status = "active"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolledBack"
)

// Reader is the read-through dependency: the underlying entity store.
type Reader interface {
	Get(typeName, id string) map[string]any
}

// Applier replays a transaction's operations against the underlying
// provider, running the full side-effect chain (events, embeddings,
// artifact invalidation) for each one. The provider
// implements this so txn never imports provider (avoiding a cycle).
type Applier interface {
	Create(ctx context.Context, typeName, id string, data map[string]any) (map[string]any, error)
	Update(ctx context.Context, typeName, id string, data map[string]any) (map[string]any, error)
	Delete(ctx context.Context, typeName, id string) (bool, error)
	Relate(ctx context.Context, fromType, fromID, relation, toType, toID string) error
}

// Buffer is one open transaction.
type Buffer struct {
	mu         sync.Mutex
	reader     Reader
	applier    Applier
	staged     map[string]map[string]map[string]any // type -> id -> data
	tombstones map[string]map[string]bool
	ops        []Op
	status     Status
	tempSeq    int
}

// Begin starts a new transaction buffer against reader, replayed
// through applier on Commit.
func Begin(reader Reader, applier Applier) *Buffer {
	return &Buffer{
		reader:     reader,
		applier:    applier,
		staged:     make(map[string]map[string]map[string]any),
		tombstones: make(map[string]map[string]bool),
		status:     StatusActive,
	}
}

func (b *Buffer) closedErr() *schema.Error {
	return schema.New(schema.KindTransactionClosed, "transaction is "+string(b.status))
}

func (b *Buffer) tombstoned(typeName, id string) bool {
	set, ok := b.tombstones[typeName]
	return ok && set[id]
}

// Get checks the tombstone set first (-> nil), then the staged map,
// then the underlying store.
func (b *Buffer) Get(typeName, id string) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != StatusActive {
		return nil, b.closedErr()
	}
	if b.tombstoned(typeName, id) {
		return nil, nil
	}
	if typeTable, ok := b.staged[typeName]; ok {
		if data, ok := typeTable[id]; ok {
			return data, nil
		}
	}
	return b.reader.Get(typeName, id), nil
}

// Create allocates a temporary id (txn-temp-N) if id is empty, writes
// to the staged map, and appends the operation.
func (b *Buffer) Create(typeName, id string, data map[string]any) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != StatusActive {
		return "", b.closedErr()
	}
	if id == "" {
		b.tempSeq++
		id = fmt.Sprintf("txn-temp-%d", b.tempSeq)
	}
	b.stage(typeName, id, data)
	b.ops = append(b.ops, Op{Kind: OpCreate, Type: typeName, ID: id, Data: data})
	return id, nil
}

// Update resolves current state via Get, merges the patch, and
// stages it; a missing entity is an error.
func (b *Buffer) Update(typeName, id string, patch map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != StatusActive {
		return b.closedErr()
	}
	current, err := b.getLocked(typeName, id)
	if err != nil {
		return err
	}
	if current == nil {
		return schema.New(schema.KindNotFound, "entity not found: "+typeName+"/"+id)
	}
	merged := make(map[string]any, len(current)+len(patch))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	b.stage(typeName, id, merged)
	b.ops = append(b.ops, Op{Kind: OpUpdate, Type: typeName, ID: id, Data: patch})
	return nil
}

// getLocked is Get's logic without re-acquiring the mutex, for use by
// other locked methods.
func (b *Buffer) getLocked(typeName, id string) (map[string]any, error) {
	if b.tombstoned(typeName, id) {
		return nil, nil
	}
	if typeTable, ok := b.staged[typeName]; ok {
		if data, ok := typeTable[id]; ok {
			return data, nil
		}
	}
	return b.reader.Get(typeName, id), nil
}

// Delete verifies existence, removes from the staged map, and inserts
// the tombstone.
func (b *Buffer) Delete(typeName, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != StatusActive {
		return b.closedErr()
	}
	current, err := b.getLocked(typeName, id)
	if err != nil {
		return err
	}
	if current == nil {
		return schema.New(schema.KindNotFound, "entity not found: "+typeName+"/"+id)
	}
	if t, ok := b.staged[typeName]; ok {
		delete(t, id)
	}
	set, ok := b.tombstones[typeName]
	if !ok {
		set = make(map[string]bool)
		b.tombstones[typeName] = set
	}
	set[id] = true
	b.ops = append(b.ops, Op{Kind: OpDelete, Type: typeName, ID: id})
	return nil
}

// Relate appends to the operation log only; relation staging has no
// read-through semantics to preserve.
func (b *Buffer) Relate(fromType, fromID, relation, toType, toID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != StatusActive {
		return b.closedErr()
	}
	b.ops = append(b.ops, Op{Kind: OpRelate, Type: fromType, ID: fromID, Relation: relation, ToType: toType, ToID: toID})
	return nil
}

func (b *Buffer) stage(typeName, id string, data map[string]any) {
	t, ok := b.staged[typeName]
	if !ok {
		t = make(map[string]map[string]any)
		b.staged[typeName] = t
	}
	t[id] = data
	if set, ok := b.tombstones[typeName]; ok {
		delete(set, id)
	}
}

// Commit replays operations against the underlying store in
// insertion order via Applier; each replayed operation runs its full
// side-effect chain. On any operation failure the remainder is not
// applied and the error propagates, but the transaction is still
// marked committed: already-applied operations are not rolled back
// by a later failure.
func (b *Buffer) Commit(ctx context.Context) error {
	b.mu.Lock()
	if b.status != StatusActive {
		err := b.closedErr()
		b.mu.Unlock()
		return err
	}
	ops := append([]Op{}, b.ops...)
	b.status = StatusCommitted
	b.mu.Unlock()

	for _, op := range ops {
		var err error
		switch op.Kind {
		case OpCreate:
			_, err = b.applier.Create(ctx, op.Type, op.ID, op.Data)
		case OpUpdate:
			_, err = b.applier.Update(ctx, op.Type, op.ID, op.Data)
		case OpDelete:
			_, err = b.applier.Delete(ctx, op.Type, op.ID)
		case OpRelate:
			err = b.applier.Relate(ctx, op.Type, op.ID, op.Relation, op.ToType, op.ToID)
		}
		if err != nil {
			return fmt.Errorf("transaction commit failed replaying %s %s/%s: %w", op.Kind, op.Type, op.ID, err)
		}
	}
	return nil
}

// Rollback discards all buffers.
func (b *Buffer) Rollback() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != StatusActive {
		return b.closedErr()
	}
	b.status = StatusRolledBack
	b.staged = make(map[string]map[string]map[string]any)
	b.tombstones = make(map[string]map[string]bool)
	b.ops = nil
	return nil
}

// Status returns the transaction's current lifecycle state.
func (b *Buffer) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}
