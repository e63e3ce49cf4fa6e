package retrieval

import (
	"context"
	"sort"
)

// UnionMode selects between ordered first-match and parallel
// all-types search.
type UnionMode string

const (
	UnionOrdered  UnionMode = "ordered"
	UnionParallel UnionMode = "parallel"
)

// OnErrorPolicy governs per-type failures in parallel mode.
type OnErrorPolicy string

const (
	OnErrorContinue OnErrorPolicy = "continue"
	OnErrorFail     OnErrorPolicy = "fail"
)

// UnionOptions controls UnionSearch.
type UnionOptions struct {
	Mode      UnionMode
	MinScore  float64
	PerType   map[string]float64 // per-type threshold override
	ReturnAll bool
	OnError   OnErrorPolicy
}

// UnionResult reports the outcome of a union fallback search over a
// pipe-separated candidate type list.
type UnionResult struct {
	Results               []SemanticResult
	SearchedTypes         []string
	SearchOrder           []string
	MatchedType           string
	FallbackTriggered     bool
	AllTypesExhausted     bool
	BelowThresholdMatches []SemanticResult
	Errors                []error
}

// UnionSearch resolves a "<~Type1|Type2|..." reference by searching
// each candidate type. types is never mutated.
func (eng *Engine) UnionSearch(ctx context.Context, types []string, query string, opts UnionOptions) (*UnionResult, error) {
	candidates := append([]string{}, types...) // defensive copy; caller's slice is never mutated

	if opts.Mode == UnionParallel {
		return eng.unionParallel(ctx, candidates, query, opts)
	}
	return eng.unionOrdered(ctx, candidates, query, opts)
}

func (eng *Engine) threshold(typeName string, opts UnionOptions) float64 {
	if t, ok := opts.PerType[typeName]; ok {
		return t
	}
	return opts.MinScore
}

func (eng *Engine) unionOrdered(ctx context.Context, types []string, query string, opts UnionOptions) (*UnionResult, error) {
	res := &UnionResult{SearchOrder: types}
	var belowThreshold []SemanticResult

	for _, t := range types {
		res.SearchedTypes = append(res.SearchedTypes, t)
		hits, err := eng.SemanticSearch(ctx, t, query, SemanticOptions{MinScore: 0})
		if err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		threshold := eng.threshold(t, opts)
		var passing []SemanticResult
		for _, h := range hits {
			if h.Score >= threshold {
				passing = append(passing, h)
			} else {
				belowThreshold = append(belowThreshold, h)
			}
		}
		if len(passing) > 0 {
			res.Results = passing
			res.MatchedType = t
			res.FallbackTriggered = len(res.SearchedTypes) > 1
			return res, nil
		}
	}

	res.AllTypesExhausted = true
	res.BelowThresholdMatches = belowThreshold
	return res, nil
}

func (eng *Engine) unionParallel(ctx context.Context, types []string, query string, opts UnionOptions) (*UnionResult, error) {
	res := &UnionResult{SearchOrder: types, SearchedTypes: append([]string{}, types...)}

	type outcome struct {
		typeName string
		hits     []SemanticResult
		err      error
	}
	ch := make(chan outcome, len(types))
	for _, t := range types {
		t := t
		go func() {
			hits, err := eng.SemanticSearch(ctx, t, query, SemanticOptions{MinScore: eng.threshold(t, opts)})
			ch <- outcome{typeName: t, hits: hits, err: err}
		}()
	}

	var merged []SemanticResult
	for i := 0; i < len(types); i++ {
		o := <-ch
		if o.err != nil {
			if opts.OnError == OnErrorFail {
				return nil, o.err
			}
			res.Errors = append(res.Errors, o.err)
			continue
		}
		merged = append(merged, o.hits...)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })

	if len(merged) == 0 {
		res.AllTypesExhausted = true
		return res, nil
	}

	if opts.ReturnAll {
		res.Results = merged
	} else {
		res.Results = merged[:1]
		res.MatchedType = idType(merged[0])
	}
	return res, nil
}

func idType(r SemanticResult) string {
	if t, ok := r.Record["$type"].(string); ok {
		return t
	}
	return ""
}
