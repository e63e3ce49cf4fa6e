package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"eve.evalgo.org/retrieval"
	"eve.evalgo.org/store"
)

func (s *Server) registerSearchRoutes(g *echo.Group) {
	g.GET("/entities/:type/search", s.handleSearch)
	g.GET("/entities/:type/semantic-search", s.handleSemanticSearch)
	g.GET("/entities/:type/hybrid-search", s.handleHybridSearch)
	g.GET("/union-search", s.handleUnionSearch)
}

func floatParam(c echo.Context, name string, def float64) float64 {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func intParam(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// withScores returns a copy of rec with the given ranking keys
// attached, so the wire shape carries $score/$rrfScore/$ftsRank/
// $semanticRank alongside the entity fields.
func withScores(rec map[string]any, scores map[string]any) map[string]any {
	out := make(map[string]any, len(rec)+len(scores))
	for k, v := range rec {
		out[k] = v
	}
	for k, v := range scores {
		out[k] = v
	}
	return out
}

func semanticRecords(results []retrieval.SemanticResult) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, withScores(r.Record, map[string]any{"$score": r.Score}))
	}
	return out
}

func (s *Server) handleSearch(c echo.Context) error {
	query := c.QueryParam("q")
	opts := store.SearchOptions{MinScore: floatParam(c, "minScore", 0)}
	if fields := c.QueryParam("fields"); fields != "" {
		opts.Fields = strings.Split(fields, ",")
	}
	results := s.Provider.Search(c.Param("type"), query, opts)
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, withScores(r.Record, map[string]any{"$score": r.Score}))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleSemanticSearch(c echo.Context) error {
	query := c.QueryParam("q")
	opts := retrieval.SemanticOptions{
		MinScore: floatParam(c, "minScore", 0),
		Limit:    intParam(c, "limit", 0),
	}
	results, err := s.Provider.SemanticSearch(c.Request().Context(), c.Param("type"), query, opts)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, semanticRecords(results))
}

func (s *Server) handleHybridSearch(c echo.Context) error {
	query := c.QueryParam("q")
	opts := retrieval.HybridOptions{
		K:      floatParam(c, "k", 60),
		WFTS:   floatParam(c, "wFts", 0.5),
		WSem:   floatParam(c, "wSem", 0.5),
		Offset: intParam(c, "offset", 0),
		Limit:  intParam(c, "limit", 0),
	}
	if fields := c.QueryParam("fields"); fields != "" {
		opts.Fields = strings.Split(fields, ",")
	}
	results, err := s.Provider.HybridSearch(c.Request().Context(), c.Param("type"), query, opts)
	if err != nil {
		return writeErr(c, err)
	}
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		scores := map[string]any{"$rrfScore": r.RRFScore, "$score": r.Score}
		if r.FTSRank != nil {
			scores["$ftsRank"] = *r.FTSRank
		}
		if r.SemanticRank != nil {
			scores["$semanticRank"] = *r.SemanticRank
		}
		out = append(out, withScores(r.Record, scores))
	}
	return c.JSON(http.StatusOK, out)
}

type unionSearchResponse struct {
	Results               []map[string]any `json:"results"`
	SearchedTypes         []string         `json:"searchedTypes"`
	SearchOrder           []string         `json:"searchOrder"`
	MatchedType           string           `json:"matchedType,omitempty"`
	FallbackTriggered     bool             `json:"fallbackTriggered"`
	AllTypesExhausted     bool             `json:"allTypesExhausted"`
	BelowThresholdMatches []map[string]any `json:"belowThresholdMatches,omitempty"`
	Errors                []string         `json:"errors,omitempty"`
}

func (s *Server) handleUnionSearch(c echo.Context) error {
	types := strings.Split(c.QueryParam("types"), "|")
	query := c.QueryParam("q")
	opts := retrieval.UnionOptions{MinScore: floatParam(c, "minScore", 0)}
	if c.QueryParam("mode") == string(retrieval.UnionParallel) {
		opts.Mode = retrieval.UnionParallel
	}
	if c.QueryParam("returnAll") == "true" {
		opts.ReturnAll = true
	}
	if c.QueryParam("onError") == string(retrieval.OnErrorFail) {
		opts.OnError = retrieval.OnErrorFail
	}
	result, err := s.Provider.UnionSearch(c.Request().Context(), types, query, opts)
	if err != nil {
		return writeErr(c, err)
	}
	resp := unionSearchResponse{
		Results:               semanticRecords(result.Results),
		SearchedTypes:         result.SearchedTypes,
		SearchOrder:           result.SearchOrder,
		MatchedType:           result.MatchedType,
		FallbackTriggered:     result.FallbackTriggered,
		AllTypesExhausted:     result.AllTypesExhausted,
		BelowThresholdMatches: semanticRecords(result.BelowThresholdMatches),
		Errors:                errorStrings(result.Errors),
	}
	return c.JSON(http.StatusOK, resp)
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}
