package store

import "testing"

func containsValue(vals []string, v string) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}

func TestRelateAndRelated(t *testing.T) {
	r := NewRelationStore()
	r.Relate("Task", "t1", "blockedBy", "Task", "t2")
	r.Relate("Task", "t1", "blockedBy", "Task", "t3")

	related := r.Related("Task", "t1", "blockedBy")
	if len(related) != 2 || !containsValue(related, "Task:t2") || !containsValue(related, "Task:t3") {
		t.Fatalf("got %v", related)
	}
}

func TestRelateIsIdempotent(t *testing.T) {
	r := NewRelationStore()
	r.Relate("Task", "t1", "blockedBy", "Task", "t2")
	r.Relate("Task", "t1", "blockedBy", "Task", "t2")
	if related := r.Related("Task", "t1", "blockedBy"); len(related) != 1 {
		t.Fatalf("expected a single edge, got %v", related)
	}
}

func TestUnrelateRemovesOneEdge(t *testing.T) {
	r := NewRelationStore()
	r.Relate("Task", "t1", "blockedBy", "Task", "t2")
	r.Relate("Task", "t1", "blockedBy", "Task", "t3")
	r.Unrelate("Task", "t1", "blockedBy", "Task", "t2")

	related := r.Related("Task", "t1", "blockedBy")
	if len(related) != 1 || related[0] != "Task:t3" {
		t.Fatalf("got %v", related)
	}
}

func TestUnrelateMissingEdgeIsNoop(t *testing.T) {
	r := NewRelationStore()
	r.Unrelate("Task", "t1", "blockedBy", "Task", "t2")
	if related := r.Related("Task", "t1", "blockedBy"); len(related) != 0 {
		t.Fatalf("got %v", related)
	}
}

func TestRelatedUnknownEdgeReturnsNil(t *testing.T) {
	r := NewRelationStore()
	if related := r.Related("Task", "missing", "blockedBy"); related != nil {
		t.Fatalf("expected nil, got %v", related)
	}
}

func TestCleanupEntityRemovesOutgoingAndIncomingEdges(t *testing.T) {
	r := NewRelationStore()
	r.Relate("Task", "t1", "blockedBy", "Task", "t2")
	r.Relate("Task", "t3", "blockedBy", "Task", "t1")

	r.CleanupEntity("Task", "t1")

	if related := r.Related("Task", "t1", "blockedBy"); len(related) != 0 {
		t.Fatalf("expected t1's outgoing edges removed, got %v", related)
	}
	if related := r.Related("Task", "t3", "blockedBy"); len(related) != 0 {
		t.Fatalf("expected t1 removed from t3's edge set, got %v", related)
	}
}
