package artifact

import (
	"context"
	"testing"
)

func TestMockProviderIsDeterministic(t *testing.T) {
	p := MockProvider{}
	v1, err := p.EmbedTexts(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}
	v2, _ := p.EmbedTexts(context.Background(), []string{"hello"})
	if len(v1[0]) != defaultEmbeddingDims {
		t.Fatalf("expected %d dims, got %d", defaultEmbeddingDims, len(v1[0]))
	}
	for i := range v1[0] {
		if v1[0][i] != v2[0][i] {
			t.Fatalf("expected deterministic embedding for identical text")
		}
	}
}

func TestMockProviderDiffersByText(t *testing.T) {
	p := MockProvider{}
	v1, _ := p.EmbedTexts(context.Background(), []string{"hello"})
	v2, _ := p.EmbedTexts(context.Background(), []string{"goodbye"})
	if v1[0][0] == v2[0][0] && v1[0][1] == v2[0][1] {
		t.Fatalf("expected distinct embeddings for distinct text")
	}
}

func TestCosineSimilarityIdenticalVectorsIsOne(t *testing.T) {
	v := []float64{1, 2, 3}
	sim := CosineSimilarity(v, v)
	if sim < 0.999 || sim > 1.001 {
		t.Fatalf("got %v", sim)
	}
}

func TestCosineSimilarityOrthogonalIsZero(t *testing.T) {
	sim := CosineSimilarity([]float64{1, 0}, []float64{0, 1})
	if sim != 0 {
		t.Fatalf("got %v", sim)
	}
}

func TestCosineSimilarityZeroVectorIsZero(t *testing.T) {
	sim := CosineSimilarity([]float64{0, 0}, []float64{1, 1})
	if sim != 0 {
		t.Fatalf("got %v", sim)
	}
}

type fakeSimilarityProvider struct{ MockProvider }

func (fakeSimilarityProvider) CosineSimilarity(a, b []float64) float64 { return 0.5 }

func TestSimilarityDispatchesToProviderOverride(t *testing.T) {
	sim := Similarity(fakeSimilarityProvider{}, []float64{1, 0}, []float64{0, 1})
	if sim != 0.5 {
		t.Fatalf("expected provider override to be used, got %v", sim)
	}
}

func TestSimilarityFallsBackToDefault(t *testing.T) {
	sim := Similarity(MockProvider{}, []float64{1, 2, 3}, []float64{1, 2, 3})
	if sim < 0.999 {
		t.Fatalf("got %v", sim)
	}
}
