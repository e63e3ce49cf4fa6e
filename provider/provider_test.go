package provider

import (
	"context"
	"testing"

	"eve.evalgo.org/artifact"
	"eve.evalgo.org/eventbus"
	"eve.evalgo.org/migration"
	"eve.evalgo.org/schema"
	"eve.evalgo.org/semantic/runtime"
)

func newTestProvider() *Provider {
	return New(schema.NewSchema())
}

func TestCreateEmitsTypeThenGlobalEvent(t *testing.T) {
	p := newTestProvider()
	var names []string
	p.On("*", func(ctx context.Context, e *runtime.Event) error {
		names = append(names, e.EventName)
		return nil
	})

	rec, err := p.Create(context.Background(), "Task", "t1", map[string]any{"title": "write tests"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec["$id"] != "t1" {
		t.Fatalf("expected id t1, got %v", rec)
	}
	if len(names) != 2 || names[0] != "Task.created" || names[1] != "entity:created" {
		t.Fatalf("expected [Task.created entity:created] in order, got %v", names)
	}
}

func TestUpdateInvalidatesArtifactsAndEmitsPair(t *testing.T) {
	p := newTestProvider()
	if _, err := p.Create(context.Background(), "Task", "t1", map[string]any{"title": "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	url := artifact.URL("Task", "t1")
	p.SetArtifact(url, "summary", "old summary", nil)

	var names []string
	p.On("*", func(ctx context.Context, e *runtime.Event) error {
		names = append(names, e.EventName)
		return nil
	})

	rec, err := p.Update(context.Background(), "Task", "t1", map[string]any{"title": "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec["title"] != "b" {
		t.Fatalf("expected merged update, got %v", rec)
	}
	if len(names) != 2 || names[0] != "Task.updated" || names[1] != "entity:updated" {
		t.Fatalf("expected [Task.updated entity:updated] in order, got %v", names)
	}
	if p.GetArtifact(url, "summary") != nil {
		t.Fatal("expected the non-embedding artifact invalidated by update")
	}
	if p.GetArtifact(url, artifact.EmbeddingKind) == nil {
		t.Fatal("expected the embedding to survive the update")
	}
}

func TestDeleteMissingReturnsFalseNotError(t *testing.T) {
	p := newTestProvider()
	ok, err := p.Delete(context.Background(), "Task", "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected false for missing entity")
	}
}

func TestDeleteCleansUpRelationsAndArtifacts(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()
	if _, err := p.Create(ctx, "Task", "t1", map[string]any{"title": "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Create(ctx, "Task", "t2", map[string]any{"title": "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Relate(ctx, "Task", "t1", "blocks", "Task", "t2", RelateOptions{})

	ok, err := p.Delete(ctx, "Task", "t1")
	if err != nil || !ok {
		t.Fatalf("expected successful delete, got ok=%v err=%v", ok, err)
	}
	if related := p.Related("Task", "t1", "blocks"); len(related) != 0 {
		t.Fatalf("expected relations cleaned up, got %v", related)
	}
	if arts := p.ListArtifacts(artifact.URL("Task", "t1")); len(arts) != 0 {
		t.Fatalf("expected artifacts cleaned up, got %d", len(arts))
	}
}

func TestRelateEmitsRelationCreated(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()
	_, _ = p.Create(ctx, "Task", "t1", map[string]any{})
	_, _ = p.Create(ctx, "Task", "t2", map[string]any{})

	var captured *runtime.Event
	p.On("Relation.created", func(ctx context.Context, e *runtime.Event) error {
		captured = e
		return nil
	})
	p.Relate(ctx, "Task", "t1", "blocks", "Task", "t2", RelateOptions{})

	if captured == nil {
		t.Fatal("expected Relation.created event")
	}
	if captured.ObjectData["toId"] != "t2" {
		t.Fatalf("expected toId t2, got %v", captured.ObjectData)
	}
	if related := p.Related("Task", "t1", "blocks"); len(related) != 1 || related[0]["$id"] != "t2" {
		t.Fatalf("expected the t2 projection, got %v", related)
	}
}

func TestCreateManyRejectsOversizedBatch(t *testing.T) {
	p := newTestProvider()
	items := make([]CreateManyInput, maxBatchSize+1)
	_, errs := p.CreateMany(context.Background(), "Task", items)
	if len(errs) != 1 || schema.KindOf(errs[0].Err) != schema.KindValidation {
		t.Fatalf("expected one VALIDATION error, got %v", errs)
	}
}

func TestCreateManyCollectsPerItemErrors(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()
	_, _ = p.Create(ctx, "Task", "dup", map[string]any{})

	items := []CreateManyInput{
		{ID: "t1", Data: map[string]any{"title": "a"}},
		{ID: "dup", Data: map[string]any{"title": "b"}},
	}
	results, errs := p.CreateMany(ctx, "Task", items)
	if len(errs) != 1 || errs[0].Index != 1 {
		t.Fatalf("expected one error at index 1, got %v", errs)
	}
	if results[0]["$id"] != "t1" {
		t.Fatalf("expected first item created, got %v", results[0])
	}
}

func TestPerformManyMixedBatch(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()
	_, _ = p.Create(ctx, "Task", "t1", map[string]any{"title": "a"})

	ops := []PerformOp{
		{Kind: "create", Type: "Task", ID: "t2", Data: map[string]any{"title": "b"}},
		{Kind: "update", Type: "Task", ID: "t1", Data: map[string]any{"title": "c"}},
		{Kind: "delete", Type: "Task", ID: "t1"},
		{Kind: "bogus", Type: "Task", ID: "t1"},
	}
	out, err := p.PerformMany(ctx, ops)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Record["$id"] != "t2" {
		t.Fatalf("expected t2 created, got %v", out[0])
	}
	if out[1].Record["title"] != "c" {
		t.Fatalf("expected t1 updated, got %v", out[1])
	}
	if !out[2].Deleted {
		t.Fatalf("expected t1 deleted")
	}
	if schema.KindOf(out[3].Err) != schema.KindValidation {
		t.Fatalf("expected VALIDATION for unknown op kind, got %v", out[3].Err)
	}
}

func TestBeginTransactionCommitReplaysThroughProvider(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()

	txnBuf := p.BeginTransaction()
	id, err := txnBuf.Create("Task", "", map[string]any{"title": "from txn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := txnBuf.Commit(ctx); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	rec := p.Get("Task", id)
	if rec == nil || rec["title"] != "from txn" {
		t.Fatalf("expected committed create visible via provider, got %v", rec)
	}
}

func TestListEventsReflectsEmittedHistory(t *testing.T) {
	p := newTestProvider()
	ctx := context.Background()
	_, _ = p.Create(ctx, "Task", "t1", map[string]any{})

	events := p.ListEvents(eventbus.ListFilter{})
	if len(events) != 2 {
		t.Fatalf("expected 2 logged events, got %d", len(events))
	}
}

func TestMigrateThroughProviderBumpsSchemaVersion(t *testing.T) {
	p := newTestProvider()
	migrations := []migration.Migration{
		{
			Version: 1,
			Name:    "add task entity",
			Up:      []migration.Operation{{Type: migration.OpAddEntity, EntityType: "Task"}},
			Down:    []migration.Operation{{Type: migration.OpRemoveEntity, EntityType: "Task"}},
		},
	}

	if p.SchemaVersion() != 0 {
		t.Fatalf("expected version 0 before migrating, got %d", p.SchemaVersion())
	}
	res, err := p.Migrate(context.Background(), migrations, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Errors) != 0 || res.ToVersion != 1 {
		t.Fatalf("expected clean run to version 1, got %+v", res)
	}
	if p.SchemaVersion() != 1 {
		t.Fatalf("expected version 1 after migrating, got %d", p.SchemaVersion())
	}
	if p.Schema.Entities["Task"] == nil {
		t.Fatal("expected Task registered in the live schema")
	}
}

func TestDiffSchemaReportsAddedEntity(t *testing.T) {
	p := newTestProvider()
	proposed := schema.NewSchema()
	entity, err := schema.ParseEntity("Post", []string{"title"}, map[string]string{"title": "string"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	proposed.EntityOrder = append(proposed.EntityOrder, "Post")
	proposed.Entities["Post"] = entity

	d := p.DiffSchema(proposed)
	if len(d.AddedEntities) != 1 || d.AddedEntities[0] != "Post" {
		t.Fatalf("expected Post reported as added, got %+v", d)
	}
}
