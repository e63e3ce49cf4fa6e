package retrieval

import (
	"context"
	"testing"
)

func TestUnionSearchOrderedStopsAtFirstMatchingType(t *testing.T) {
	eng, entities, cache := setupEngine(t)
	entities.Create("Project", "p1", map[string]any{"name": "widgets"})
	embed(t, cache, "Project", "p1", "widgets")

	res, err := eng.UnionSearch(context.Background(), []string{"Task", "Project"}, "widgets", UnionOptions{Mode: UnionOrdered})
	if err != nil {
		t.Fatalf("UnionSearch: %v", err)
	}
	if res.MatchedType != "Project" {
		t.Fatalf("got matched type %q", res.MatchedType)
	}
	if !res.FallbackTriggered {
		t.Fatalf("expected FallbackTriggered since Task was searched first and found nothing")
	}
	if len(res.SearchedTypes) != 2 {
		t.Fatalf("expected both types searched, got %v", res.SearchedTypes)
	}
}

func TestUnionSearchOrderedDoesNotMutateCallerSlice(t *testing.T) {
	eng, entities, cache := setupEngine(t)
	entities.Create("Task", "t1", map[string]any{"title": "widgets"})
	embed(t, cache, "Task", "t1", "widgets")

	types := []string{"Task", "Project"}
	_, err := eng.UnionSearch(context.Background(), types, "widgets", UnionOptions{Mode: UnionOrdered})
	if err != nil {
		t.Fatalf("UnionSearch: %v", err)
	}
	if types[0] != "Task" || types[1] != "Project" {
		t.Fatalf("caller's slice must not be mutated, got %v", types)
	}
}

func TestUnionSearchOrderedAllTypesExhausted(t *testing.T) {
	eng, entities, cache := setupEngine(t)
	entities.Create("Task", "t1", map[string]any{"title": "widgets"})
	embed(t, cache, "Task", "t1", "widgets")

	res, err := eng.UnionSearch(context.Background(), []string{"Task"}, "widgets", UnionOptions{Mode: UnionOrdered, MinScore: 1.1})
	if err != nil {
		t.Fatalf("UnionSearch: %v", err)
	}
	if !res.AllTypesExhausted {
		t.Fatalf("expected AllTypesExhausted when no type clears the threshold")
	}
	if len(res.BelowThresholdMatches) == 0 {
		t.Fatalf("expected below-threshold matches to be reported")
	}
}

func TestUnionSearchParallelReturnsTopMatchAcrossTypes(t *testing.T) {
	eng, entities, cache := setupEngine(t)
	entities.Create("Task", "t1", map[string]any{"title": "widgets"})
	entities.Create("Project", "p1", map[string]any{"name": "gadgets"})
	embed(t, cache, "Task", "t1", "widgets")
	embed(t, cache, "Project", "p1", "gadgets")

	res, err := eng.UnionSearch(context.Background(), []string{"Task", "Project"}, "widgets", UnionOptions{Mode: UnionParallel})
	if err != nil {
		t.Fatalf("UnionSearch: %v", err)
	}
	if len(res.Results) != 1 {
		t.Fatalf("expected a single top match by default, got %d", len(res.Results))
	}
	if res.MatchedType != "Task" {
		t.Fatalf("expected the exact-text match to win, got %q", res.MatchedType)
	}
}

func TestUnionSearchParallelReturnAll(t *testing.T) {
	eng, entities, cache := setupEngine(t)
	entities.Create("Task", "t1", map[string]any{"title": "widgets"})
	entities.Create("Project", "p1", map[string]any{"name": "gadgets"})
	embed(t, cache, "Task", "t1", "widgets")
	embed(t, cache, "Project", "p1", "gadgets")

	res, err := eng.UnionSearch(context.Background(), []string{"Task", "Project"}, "widgets", UnionOptions{Mode: UnionParallel, ReturnAll: true})
	if err != nil {
		t.Fatalf("UnionSearch: %v", err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("expected both results with ReturnAll, got %d", len(res.Results))
	}
}
