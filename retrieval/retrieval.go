// Package retrieval layers three search modes over the entity store:
// full-text substring search, semantic (embedding cosine-similarity)
// search, and hybrid reciprocal-rank fusion of the two, plus a union
// fallback search over a list of candidate types.
package retrieval

import (
	"context"
	"sort"

	"eve.evalgo.org/artifact"
	"eve.evalgo.org/store"
)

// SemanticOptions controls SemanticSearch.
type SemanticOptions struct {
	MinScore float64
	Limit    int
}

// SemanticResult pairs a projection with its cosine score and rank.
type SemanticResult struct {
	Record map[string]any
	Score  float64
	Rank   int // 1-based
}

// Engine runs searches against one entity store and artifact cache.
type Engine struct {
	entities *store.EntityStore
	cache    *artifact.Cache
	provider artifact.EmbeddingProvider
}

func NewEngine(entities *store.EntityStore, cache *artifact.Cache, provider artifact.EmbeddingProvider) *Engine {
	return &Engine{entities: entities, cache: cache, provider: provider}
}

// SemanticSearch embeds query, iterates all entities of typeName,
// fetches their cached embeddings, computes cosine similarity,
// filters by minScore, sorts descending, and cuts to limit.
func (eng *Engine) SemanticSearch(ctx context.Context, typeName, query string, opts SemanticOptions) ([]SemanticResult, error) {
	vectors, err := eng.provider.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	qvec := vectors[0]

	records, err := eng.entities.List(typeName, store.ListOptions{})
	if err != nil {
		return nil, err
	}

	var results []SemanticResult
	for _, rec := range records {
		id, _ := rec["$id"].(string)
		url := artifact.URL(typeName, id)
		a := eng.cache.Get(url, artifact.EmbeddingKind)
		if a == nil {
			continue
		}
		vec, ok := a.Content.([]float64)
		if !ok {
			continue
		}
		score := artifact.Similarity(eng.provider, qvec, vec)
		if score < opts.MinScore {
			continue
		}
		results = append(results, SemanticResult{Record: rec, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	for i := range results {
		results[i].Rank = i + 1
	}
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// HybridOptions controls HybridSearch's pagination and RRF weights.
type HybridOptions struct {
	K       float64
	WFTS    float64
	WSem    float64
	Offset  int
	Limit   int
	Fields  []string // FTS field scope
}

// HybridResult is a fused record with both input ranks and the
// combined score.
type HybridResult struct {
	Record       map[string]any
	RRFScore     float64
	FTSRank      *int
	SemanticRank *int
	Score        float64 // semantic score, if present
}

const defaultRRFK = 60.0
const defaultWeight = 0.5

// HybridSearch combines FTS ranks and semantic ranks via reciprocal
// rank fusion:
//
//	rrf(ftsRank, semRank) = w_fts/(k+ftsRank) + w_sem/(k+semRank)
//
// A missing rank contributes 0 (treated as +inf). The candidate set is
// the union of both result sets; pagination fetches 2*(limit+offset)
// semantic candidates before applying offset/limit.
func (eng *Engine) HybridSearch(ctx context.Context, typeName, query string, opts HybridOptions) ([]HybridResult, error) {
	k := opts.K
	if k == 0 {
		k = defaultRRFK
	}
	wFTS, wSem := opts.WFTS, opts.WSem
	if wFTS == 0 && wSem == 0 {
		wFTS, wSem = defaultWeight, defaultWeight
	}

	ftsResults := eng.entities.Search(typeName, query, store.SearchOptions{Fields: opts.Fields})

	semLimit := 2 * (opts.Limit + opts.Offset)
	if semLimit <= 0 {
		semLimit = 2 * 50
	}
	semResults, err := eng.SemanticSearch(ctx, typeName, query, SemanticOptions{Limit: semLimit})
	if err != nil {
		return nil, err
	}

	ftsRank := make(map[string]int)
	ftsByID := make(map[string]map[string]any)
	for i, r := range ftsResults {
		id, _ := r.Record["$id"].(string)
		ftsRank[id] = i + 1
		ftsByID[id] = r.Record
	}
	semRank := make(map[string]int)
	semScore := make(map[string]float64)
	semByID := make(map[string]map[string]any)
	for _, r := range semResults {
		id, _ := r.Record["$id"].(string)
		semRank[id] = r.Rank
		semScore[id] = r.Score
		semByID[id] = r.Record
	}

	ids := map[string]bool{}
	for id := range ftsRank {
		ids[id] = true
	}
	for id := range semRank {
		ids[id] = true
	}

	var out []HybridResult
	for id := range ids {
		fr, fok := ftsRank[id]
		sr, sok := semRank[id]
		score := rrf(fr, fok, sr, sok, k, wFTS, wSem)
		rec := ftsByID[id]
		if rec == nil {
			rec = semByID[id]
		}
		hr := HybridResult{Record: rec, RRFScore: score, Score: semScore[id]}
		if fok {
			f := fr
			hr.FTSRank = &f
		}
		if sok {
			s := sr
			hr.SemanticRank = &s
		}
		out = append(out, hr)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].RRFScore > out[j].RRFScore })

	start := opts.Offset
	if start > len(out) {
		start = len(out)
	}
	end := len(out)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return out[start:end], nil
}

// rrf computes the weighted reciprocal-rank-fusion score. A missing
// rank contributes 0 to the sum (equivalent to treating it as +inf in
// the denominator).
func rrf(ftsRank int, hasFTS bool, semRank int, hasSem bool, k, wFTS, wSem float64) float64 {
	var score float64
	if hasFTS {
		score += wFTS / (k + float64(ftsRank))
	}
	if hasSem {
		score += wSem / (k + float64(semRank))
	}
	return score
}
