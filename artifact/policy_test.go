package artifact

import (
	"context"
	"errors"
	"testing"
)

type erroringProvider struct{}

func (erroringProvider) EmbedTexts(context.Context, []string) ([][]float64, error) {
	return nil, errors.New("backend unavailable")
}

func TestPolicyEmbedStoresArtifactKeyedByEmbeddingKind(t *testing.T) {
	cache := NewCache()
	p := NewPolicy(cache, MockProvider{}, nil)

	a := p.Embed(context.Background(), "Task/t1", "write the quarterly report", FieldConfig{})
	if a == nil || a.Kind != EmbeddingKind {
		t.Fatalf("got %+v", a)
	}
	vec, ok := a.Content.([]float64)
	if !ok || len(vec) != defaultEmbeddingDims {
		t.Fatalf("got %+v", a.Content)
	}
}

func TestPolicyEmbedSkipsOnEmptyText(t *testing.T) {
	cache := NewCache()
	p := NewPolicy(cache, MockProvider{}, nil)
	if a := p.Embed(context.Background(), "Task/t1", "   ", FieldConfig{}); a != nil {
		t.Fatalf("expected nil artifact for empty text, got %+v", a)
	}
}

func TestPolicyEmbedSkipsWhenDisabled(t *testing.T) {
	cache := NewCache()
	p := NewPolicy(cache, MockProvider{}, nil)
	disabled := false
	cfg := FieldConfig{Enabled: &disabled}
	if a := p.Embed(context.Background(), "Task/t1", "some text", cfg); a != nil {
		t.Fatalf("expected nil artifact when embedding disabled, got %+v", a)
	}
}

func TestPolicyEmbedFallsBackToMockOnProviderFailure(t *testing.T) {
	cache := NewCache()
	p := NewPolicy(cache, erroringProvider{}, nil)
	a := p.Embed(context.Background(), "Task/t1", "some text", FieldConfig{})
	if a == nil {
		t.Fatalf("expected the mock fallback to still produce an artifact")
	}
}

func TestPolicyGetEmbeddingReturnsStoredVector(t *testing.T) {
	cache := NewCache()
	p := NewPolicy(cache, MockProvider{}, nil)
	p.Embed(context.Background(), "Task/t1", "some text", FieldConfig{})

	vec := p.GetEmbedding("Task/t1")
	if len(vec) != defaultEmbeddingDims {
		t.Fatalf("got %v", vec)
	}
}

func TestPolicyGetEmbeddingMissingReturnsNil(t *testing.T) {
	cache := NewCache()
	p := NewPolicy(cache, MockProvider{}, nil)
	if vec := p.GetEmbedding("Task/missing"); vec != nil {
		t.Fatalf("got %v", vec)
	}
}

func TestPolicyEmbedSkipsReembedWhenSourceUnchanged(t *testing.T) {
	cache := NewCache()
	p := NewPolicy(cache, MockProvider{}, nil)
	first := p.Embed(context.Background(), "Task/t1", "same text", FieldConfig{})
	second := p.Embed(context.Background(), "Task/t1", "same text", FieldConfig{})
	if first == nil || second != first {
		t.Fatalf("expected the stored artifact back for unchanged text, got %+v then %+v", first, second)
	}

	third := p.Embed(context.Background(), "Task/t1", "different text", FieldConfig{})
	if third == nil || third == first {
		t.Fatalf("expected a fresh artifact for changed text")
	}
}
