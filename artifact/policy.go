package artifact

import (
	"context"
	"strings"

	"eve.evalgo.org/common"
)

const EmbeddingKind = "embedding"

// FieldConfig is the per-type embedding config: unset means "enabled
// over the serialized record"; an explicit false disables embedding
// for the type; Fields restricts which fields are concatenated.
type FieldConfig struct {
	Enabled *bool
	Fields  []string
}

// enabled reports whether embedding runs for this config, defaulting
// to true when unset.
func (c FieldConfig) enabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Policy runs the automatic embedding pipeline after
// create/update: extract text, embed via the injected provider (with
// mock fallback on failure), store as a "kind=embedding" artifact
// keyed by the entity's url, with the text's content hash kept as its
// SourceHash.
type Policy struct {
	cache    *Cache
	provider EmbeddingProvider
	fallback EmbeddingProvider
	logger   *common.ContextLogger
}

func NewPolicy(cache *Cache, provider EmbeddingProvider, logger *common.ContextLogger) *Policy {
	if logger == nil {
		logger = common.NewContextLogger(nil, map[string]any{"component": "artifact.Policy"})
	}
	return &Policy{cache: cache, provider: provider, fallback: MockProvider{}, logger: logger}
}

// Embed runs the policy for one entity: skip on empty text, embed
// (provider first, mock on failure), store under EmbeddingKind with
// SourceHash = hash(text). Callers extract text via
// Entity.ContentText (configured fields, or the serialized record).
// Returns the artifact, or nil if text was empty (a no-op).
func (p *Policy) Embed(ctx context.Context, url string, text string, cfg FieldConfig) *Artifact {
	if !cfg.enabled() {
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	hash := ContentHash(text)
	if existing := p.cache.Get(url, EmbeddingKind); existing != nil && existing.SourceHash == hash {
		return existing
	}

	vectors, err := p.provider.EmbedTexts(ctx, []string{text})
	if err != nil {
		p.logger.WithError(err).Warn("embedding provider failed, falling back to mock generator")
		vectors, _ = p.fallback.EmbedTexts(ctx, []string{text})
	}
	if len(vectors) == 0 {
		return nil
	}
	return p.cache.SetWithSourceHash(url, EmbeddingKind, vectors[0], hash, map[string]any{"sourceText": text})
}

// GetEmbedding returns the entity's stored embedding vector, or nil.
func (p *Policy) GetEmbedding(url string) []float64 {
	a := p.cache.Get(url, EmbeddingKind)
	if a == nil {
		return nil
	}
	vec, ok := a.Content.([]float64)
	if !ok {
		return nil
	}
	return vec
}
