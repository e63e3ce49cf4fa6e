package migration

import (
	"context"
	"testing"

	"eve.evalgo.org/schema"
	"eve.evalgo.org/store"
)

func newTestExecutor() (*Executor, *store.EntityStore, *schema.Schema) {
	entities := store.NewEntityStore()
	s := schema.NewSchema()
	return NewExecutor(entities, s), entities, s
}

func intPtr(v int) *int { return &v }

func TestMigrateRejectsNonSequentialVersions(t *testing.T) {
	ex, _, _ := newTestExecutor()
	migrations := []Migration{
		{Version: 1, Name: "first"},
		{Version: 3, Name: "skip"},
	}
	_, err := ex.Migrate(context.Background(), migrations, nil)
	if schema.KindOf(err) != schema.KindInvalidSchema {
		t.Fatalf("expected INVALID_SCHEMA, got %v", err)
	}
}

func TestMigrateForwardAppliesAddEntityAndAddField(t *testing.T) {
	ex, entities, s := newTestExecutor()
	migrations := []Migration{
		{
			Version: 1,
			Name:    "add task entity",
			Up:      []Operation{{Type: OpAddEntity, EntityType: "Task"}},
			Down:    []Operation{{Type: OpRemoveEntity, EntityType: "Task"}},
		},
		{
			Version: 2,
			Name:    "add priority field",
			Up:      []Operation{{Type: OpAddField, EntityType: "Task", FieldName: "priority", Default: "low"}},
			Down:    []Operation{{Type: OpRemoveField, EntityType: "Task", FieldName: "priority"}},
		},
	}
	_, _ = entities.Create("Task", "t1", map[string]any{"title": "a"})

	res, err := ex.Migrate(context.Background(), migrations, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected migration errors: %v", res.Errors)
	}
	if res.MigrationsRun != 2 || res.ToVersion != 2 {
		t.Fatalf("expected 2 migrations run to version 2, got %+v", res)
	}
	if s.Entities["Task"] == nil {
		t.Fatal("expected Task entity to be registered")
	}
	rec := entities.Get("Task", "t1")
	if rec["priority"] != "low" {
		t.Fatalf("expected backfilled priority field, got %v", rec)
	}
	if ex.CurrentVersion() != 2 {
		t.Fatalf("expected persisted version 2, got %d", ex.CurrentVersion())
	}
}

func TestMigrateBackwardAppliesDownOpsDescending(t *testing.T) {
	ex, entities, _ := newTestExecutor()
	migrations := []Migration{
		{
			Version: 1,
			Name:    "add task entity",
			Up:      []Operation{{Type: OpAddEntity, EntityType: "Task"}},
			Down:    []Operation{{Type: OpRemoveEntity, EntityType: "Task"}},
		},
		{
			Version: 2,
			Name:    "add priority field",
			Up:      []Operation{{Type: OpAddField, EntityType: "Task", FieldName: "priority", Default: "low"}},
			Down:    []Operation{{Type: OpRemoveField, EntityType: "Task", FieldName: "priority"}},
		},
	}
	_, _ = entities.Create("Task", "t1", map[string]any{"title": "a"})
	if _, err := ex.Migrate(context.Background(), migrations, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := ex.Migrate(context.Background(), migrations, intPtr(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ToVersion != 1 || res.MigrationsRun != 1 {
		t.Fatalf("expected rollback to version 1, got %+v", res)
	}
	rec := entities.Get("Task", "t1")
	if _, ok := rec["priority"]; ok {
		t.Fatalf("expected priority field removed on rollback, got %v", rec)
	}
}

func TestMigrateHaltsOnFirstOperationFailure(t *testing.T) {
	ex, entities, _ := newTestExecutor()
	_, _ = entities.Create("Task", "t1", map[string]any{"title": "a"})
	migrations := []Migration{
		{
			Version: 1,
			Name:    "bad transform",
			Up: []Operation{{Type: OpTransformData, EntityType: "Task", Transform: func(fields map[string]any) (map[string]any, error) {
				return nil, schema.New(schema.KindValidation, "boom")
			}}},
		},
		{
			Version: 2,
			Name:    "never reached",
			Up:      []Operation{{Type: OpAddEntity, EntityType: "Widget"}},
		},
	}

	res, err := ex.Migrate(context.Background(), migrations, nil)
	if err != nil {
		t.Fatalf("unexpected top-level error: %v", err)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected exactly one recorded error, got %v", res.Errors)
	}
	if res.ToVersion != 0 || res.MigrationsRun != 0 {
		t.Fatalf("expected no progress past the failing migration, got %+v", res)
	}
}

func TestMigrateDefaultTargetIsMaxVersion(t *testing.T) {
	ex, _, _ := newTestExecutor()
	migrations := []Migration{
		{Version: 1, Name: "a", Up: []Operation{{Type: OpAddEntity, EntityType: "A"}}},
		{Version: 2, Name: "b", Up: []Operation{{Type: OpAddEntity, EntityType: "B"}}},
		{Version: 3, Name: "c", Up: []Operation{{Type: OpAddEntity, EntityType: "C"}}},
	}
	res, err := ex.Migrate(context.Background(), migrations, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ToVersion != 3 {
		t.Fatalf("expected default target to be the highest version 3, got %d", res.ToVersion)
	}
}

func TestRemoveEntityWithDeleteDataDropsRecords(t *testing.T) {
	ex, entities, s := newTestExecutor()
	migrations := []Migration{
		{
			Version: 1,
			Name:    "add then drop task",
			Up: []Operation{
				{Type: OpAddEntity, EntityType: "Task"},
				{Type: OpRemoveEntity, EntityType: "Task", DeleteData: true},
			},
		},
	}
	_, _ = entities.Create("Task", "t1", map[string]any{"title": "a"})

	res, err := ex.Migrate(context.Background(), migrations, nil)
	if err != nil || len(res.Errors) != 0 {
		t.Fatalf("unexpected error: %v %v", err, res)
	}
	if s.Entities["Task"] != nil {
		t.Fatal("expected Task removed from the schema")
	}
	if rec := entities.Get("Task", "t1"); rec != nil {
		t.Fatalf("expected records dropped with DeleteData, got %v", rec)
	}
}
