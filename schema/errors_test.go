package schema

import (
	"errors"
	"testing"
)

func TestErrorMessageFormatsByPopulatedField(t *testing.T) {
	e := WithPath(KindInvalidSchema, "bad field", "Task.title")
	if got := e.Error(); got != "INVALID_SCHEMA: bad field (field Task.title)" {
		t.Fatalf("got %q", got)
	}

	c := WithCycle(KindCircularDependency, "cycle detected", []string{"A", "B", "A"})
	if got := c.Error(); got != "CIRCULAR_DEPENDENCY: cycle detected [A B A]" {
		t.Fatalf("got %q", got)
	}

	n := New(KindNotFound, "missing")
	if got := n.Error(); got != "NOT_FOUND: missing" {
		t.Fatalf("got %q", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	wrapped := Wrap(KindEmbeddingBackend, "embedding call failed", inner)
	if !errors.Is(wrapped, inner) {
		t.Fatalf("expected errors.Is to see through Unwrap")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != "" {
		t.Fatalf("expected empty Kind for nil error")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("expected empty Kind for a non-schema error")
	}
	wrapped := errors.New("context: " + New(KindAlreadyExists, "dup").Error())
	if KindOf(wrapped) != "" {
		t.Fatalf("a re-stringified error must not be detected via errors.As")
	}
	if KindOf(New(KindAlreadyExists, "dup")) != KindAlreadyExists {
		t.Fatalf("expected KindAlreadyExists")
	}
}
