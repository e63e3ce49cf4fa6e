// Package migration applies versioned schema migrations with
// halt-on-first-failure execution. The current version lives in a
// single _SchemaVersion record inside the entity store itself.
package migration

import (
	"context"
	"fmt"

	"eve.evalgo.org/schema"
	"eve.evalgo.org/store"
)

// OperationType enumerates the migration primitives.
type OperationType string

const (
	OpAddEntity      OperationType = "addEntity"
	OpRemoveEntity   OperationType = "removeEntity"
	OpAddField       OperationType = "addField"
	OpRemoveField    OperationType = "removeField"
	OpRenameField    OperationType = "renameField"
	OpChangeType     OperationType = "changeType"
	OpTransformData  OperationType = "transformData"
)

// TransformFunc rewrites one entity's fields during a transformData
// operation.
type TransformFunc func(fields map[string]any) (map[string]any, error)

// Operation is one step of a migration's up or down list.
type Operation struct {
	Type         OperationType
	EntityType   string
	FieldName    string
	NewFieldName string // renameField
	NewType      string // changeType
	Default      any    // addField
	DeleteData   bool   // removeEntity: also drop the type's records
	Transform    TransformFunc
}

// Migration is one versioned schema change with its forward and
// reverse operation lists.
type Migration struct {
	Version int
	Name    string
	Up      []Operation
	Down    []Operation
}

const schemaVersionType = "_SchemaVersion"
const schemaVersionID = "current"

// Executor applies migrations against one entity store and its
// parsed schema.
type Executor struct {
	entities *store.EntityStore
	schema   *schema.Schema
}

func NewExecutor(entities *store.EntityStore, s *schema.Schema) *Executor {
	return &Executor{entities: entities, schema: s}
}

// CurrentVersion reads the persisted _SchemaVersion record, or 0 if
// none has been written yet.
func (ex *Executor) CurrentVersion() int {
	rec := ex.entities.Get(schemaVersionType, schemaVersionID)
	if rec == nil {
		return 0
	}
	v, _ := rec["version"].(int)
	if v == 0 {
		if f, ok := rec["version"].(float64); ok {
			v = int(f)
		}
	}
	return v
}

func (ex *Executor) setVersion(version int, name string) error {
	data := map[string]any{"version": version, "name": name}
	if ex.entities.Exists(schemaVersionType, schemaVersionID) {
		_, err := ex.entities.Update(schemaVersionType, schemaVersionID, data)
		return err
	}
	_, err := ex.entities.Create(schemaVersionType, schemaVersionID, data)
	return err
}

// Result reports the outcome of one Migrate call.
type Result struct {
	MigrationsRun     int
	FromVersion       int
	ToVersion         int
	AppliedMigrations []string
	Errors            []error
}

// Migrate validates that migrations' versions are strictly sequential
// starting at 1, then runs the algorithm: default target is
// the highest provided version; moving forward applies each pending
// migration's Up operations ascending, bumping the version after
// each; moving backward applies each rolled-back migration's Down
// operations descending, decrementing the version after each. The
// first operation failure halts the run; the version is not advanced
// (or decremented) past the failed migration, and the error is
// recorded in Result.Errors rather than returned, so callers always
// get a usable Result reflecting exactly how far it got.
func (ex *Executor) Migrate(ctx context.Context, migrations []Migration, target *int) (*Result, error) {
	sorted := sortedByVersion(migrations)
	if err := validateSequential(sorted); err != nil {
		return nil, err
	}

	current := ex.CurrentVersion()
	to := maxVersion(sorted)
	if target != nil {
		to = *target
	}

	res := &Result{FromVersion: current, ToVersion: current}

	if to > current {
		for _, m := range sorted {
			if m.Version <= current || m.Version > to {
				continue
			}
			if err := ex.runOps(ctx, m.Up); err != nil {
				res.Errors = append(res.Errors, fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err))
				return res, nil
			}
			if err := ex.setVersion(m.Version, m.Name); err != nil {
				res.Errors = append(res.Errors, err)
				return res, nil
			}
			res.ToVersion = m.Version
			res.MigrationsRun++
			res.AppliedMigrations = append(res.AppliedMigrations, m.Name)
		}
		return res, nil
	}

	if to < current {
		for i := len(sorted) - 1; i >= 0; i-- {
			m := sorted[i]
			if m.Version > current || m.Version <= to {
				continue
			}
			if err := ex.runOps(ctx, m.Down); err != nil {
				res.Errors = append(res.Errors, fmt.Errorf("rollback of migration %d (%s) failed: %w", m.Version, m.Name, err))
				return res, nil
			}
			rewindTo := m.Version - 1
			if err := ex.setVersion(rewindTo, "rollback-of-"+m.Name); err != nil {
				res.Errors = append(res.Errors, err)
				return res, nil
			}
			res.ToVersion = rewindTo
			res.MigrationsRun++
			res.AppliedMigrations = append(res.AppliedMigrations, "rollback-of-"+m.Name)
		}
	}
	return res, nil
}

func sortedByVersion(migrations []Migration) []Migration {
	out := append([]Migration{}, migrations...)
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Version < out[i].Version {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

func validateSequential(sorted []Migration) error {
	for i, m := range sorted {
		if m.Version != i+1 {
			return schema.New(schema.KindInvalidSchema, fmt.Sprintf("migration versions must be strictly sequential starting at 1, got version %d at position %d", m.Version, i+1))
		}
	}
	return nil
}

func maxVersion(sorted []Migration) int {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[len(sorted)-1].Version
}

func (ex *Executor) runOps(ctx context.Context, ops []Operation) error {
	for _, op := range ops {
		if err := ex.runOp(ctx, op); err != nil {
			return fmt.Errorf("%s on %s.%s: %w", op.Type, op.EntityType, op.FieldName, err)
		}
	}
	return nil
}

func (ex *Executor) runOp(ctx context.Context, op Operation) error {
	switch op.Type {
	case OpAddEntity:
		if ex.schema.Entities[op.EntityType] == nil {
			ex.schema.Entities[op.EntityType] = schema.NewEntity(op.EntityType)
			ex.schema.EntityOrder = append(ex.schema.EntityOrder, op.EntityType)
		}
		return nil
	case OpRemoveEntity:
		delete(ex.schema.Entities, op.EntityType)
		for i, name := range ex.schema.EntityOrder {
			if name == op.EntityType {
				ex.schema.EntityOrder = append(ex.schema.EntityOrder[:i], ex.schema.EntityOrder[i+1:]...)
				break
			}
		}
		if op.DeleteData {
			records, err := ex.entities.List(op.EntityType, store.ListOptions{})
			if err != nil {
				return err
			}
			for _, rec := range records {
				if id, _ := rec["$id"].(string); id != "" {
					ex.entities.Delete(op.EntityType, id)
				}
			}
		}
		return nil
	case OpAddField:
		return ex.forEachRecord(op.EntityType, func(id string, fields map[string]any) (map[string]any, bool, error) {
			if _, ok := fields[op.FieldName]; ok {
				return fields, false, nil
			}
			fields[op.FieldName] = op.Default
			return fields, true, nil
		})
	case OpRemoveField:
		return ex.forEachRecord(op.EntityType, func(id string, fields map[string]any) (map[string]any, bool, error) {
			if _, ok := fields[op.FieldName]; !ok {
				return fields, false, nil
			}
			delete(fields, op.FieldName)
			return fields, true, nil
		})
	case OpRenameField:
		return ex.forEachRecord(op.EntityType, func(id string, fields map[string]any) (map[string]any, bool, error) {
			v, ok := fields[op.FieldName]
			if !ok {
				return fields, false, nil
			}
			delete(fields, op.FieldName)
			fields[op.NewFieldName] = v
			return fields, true, nil
		})
	case OpChangeType:
		return ex.forEachRecord(op.EntityType, func(id string, fields map[string]any) (map[string]any, bool, error) {
			v, ok := fields[op.FieldName]
			if !ok {
				return fields, false, nil
			}
			converted, err := convertValue(v, op.NewType)
			if err != nil {
				return fields, false, fmt.Errorf("record %s: %w", id, err)
			}
			fields[op.FieldName] = converted
			return fields, true, nil
		})
	case OpTransformData:
		return ex.forEachRecord(op.EntityType, func(id string, fields map[string]any) (map[string]any, bool, error) {
			out, err := op.Transform(fields)
			if err != nil {
				return fields, false, fmt.Errorf("record %s: %w", id, err)
			}
			return out, true, nil
		})
	default:
		return schema.New(schema.KindInvalidSchema, "unknown migration operation: "+string(op.Type))
	}
}

func (ex *Executor) forEachRecord(entityType string, f func(id string, fields map[string]any) (map[string]any, bool, error)) error {
	records, err := ex.entities.List(entityType, store.ListOptions{})
	if err != nil {
		return err
	}
	for _, rec := range records {
		id, _ := rec["$id"].(string)
		fields := projectionFields(rec)
		updated, changed, err := f(id, fields)
		if err != nil {
			return err
		}
		if changed {
			if _, err := ex.entities.Replace(entityType, id, updated); err != nil {
				return err
			}
		}
	}
	return nil
}

func projectionFields(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		if k == "$id" || k == "$type" {
			continue
		}
		out[k] = v
	}
	return out
}

func convertValue(v any, newType string) (any, error) {
	switch newType {
	case "string":
		return fmt.Sprint(v), nil
	case "number":
		switch t := v.(type) {
		case float64:
			return t, nil
		case int:
			return float64(t), nil
		case string:
			var f float64
			if _, err := fmt.Sscanf(t, "%f", &f); err != nil {
				return nil, fmt.Errorf("cannot convert %q to number: %w", t, err)
			}
			return f, nil
		}
	case "boolean":
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			return t == "true", nil
		}
	}
	return nil, fmt.Errorf("unsupported type conversion to %s for value %v", newType, v)
}
