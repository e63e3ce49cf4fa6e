package httpapi

import (
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"

	"eve.evalgo.org/eventbus"
	"eve.evalgo.org/schema"
	"eve.evalgo.org/store"
	"eve.evalgo.org/version"
)

// registerAdminRoutes mounts the bearer-token protected introspection
// and schema-management surface.
func (s *Server) registerAdminRoutes(g *echo.Group) {
	g.GET("/stats", s.handleStats)
	g.GET("/schema", s.handleGetSchema)
	g.GET("/schema/version", s.handleSchemaVersion)
	g.POST("/schema/diff", s.handleSchemaDiff)
}

// statsResponse is the introspection payload: per-type entity counts,
// event-log depth, artifact count, and limiter load.
type statsResponse struct {
	EntityCounts  map[string]int `json:"entityCounts"`
	EventCount    int            `json:"eventCount"`
	ArtifactCount int            `json:"artifactCount"`
	ArtifactSize  string         `json:"artifactSize"`
	Limiter       limiterStats   `json:"limiter"`
	BuildVersion  string         `json:"buildVersion"`
	GoVersion     string         `json:"goVersion"`
}

type limiterStats struct {
	Active   int64 `json:"active"`
	Pending  int64 `json:"pending"`
	Capacity int   `json:"capacity"`
}

func (s *Server) handleStats(c echo.Context) error {
	counts := make(map[string]int, len(s.Provider.Schema.EntityOrder))
	for _, typeName := range s.Provider.Schema.EntityOrder {
		records, err := s.Provider.List(typeName, store.ListOptions{})
		if err != nil {
			return writeErr(c, err)
		}
		counts[typeName] = len(records)
	}
	limiter := s.Provider.Limiter.Stats()
	return c.JSON(http.StatusOK, statsResponse{
		EntityCounts:  counts,
		EventCount:    len(s.Provider.ListEvents(eventbus.ListFilter{})),
		ArtifactCount: s.Provider.Artifacts.Count(),
		ArtifactSize:  humanize.Bytes(uint64(s.Provider.Artifacts.TotalBytes())),
		Limiter: limiterStats{
			Active:   limiter.Active,
			Pending:  limiter.Pending,
			Capacity: limiter.Capacity,
		},
		BuildVersion: version.GetVersion(),
		GoVersion:    version.GoVersion(),
	})
}

type schemaResponse struct {
	EntityOrder []string            `json:"entityOrder"`
	Entities    map[string][]string `json:"entities"`
}

func (s *Server) handleGetSchema(c echo.Context) error {
	resp := schemaResponse{
		EntityOrder: s.Provider.Schema.EntityOrder,
		Entities:    make(map[string][]string, len(s.Provider.Schema.Entities)),
	}
	for name, e := range s.Provider.Schema.Entities {
		resp.Entities[name] = e.FieldOrder
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSchemaVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]int{"version": s.Provider.SchemaVersion()})
}

// diffRequest carries a proposed schema in the same entity/field shape
// the YAML loader reads, so a caller can preview the structural diff
// against the live schema before writing a migration.
type diffRequest struct {
	Entities []diffRequestEntity `json:"entities"`
}

type diffRequestEntity struct {
	Name   string `json:"name"`
	Fields []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"fields"`
}

type diffResponse struct {
	AddedEntities    []string            `json:"addedEntities"`
	RemovedEntities  []string            `json:"removedEntities"`
	ModifiedEntities []diffEntityPayload `json:"modifiedEntities"`
	Summary          string              `json:"summary"`
}

type diffEntityPayload struct {
	Entity          string              `json:"entity"`
	AddedFields     []string            `json:"addedFields"`
	RemovedFields   []string            `json:"removedFields"`
	ChangedFields   []diffChangePayload `json:"changedFields"`
	PossibleRenames []diffRenamePayload `json:"possibleRenames"`
}

type diffChangePayload struct {
	Field      string `json:"field"`
	ChangeType string `json:"changeType"`
}

type diffRenamePayload struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Similarity float64 `json:"similarity"`
}

func (s *Server) handleSchemaDiff(c echo.Context) error {
	var req diffRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: string(schema.KindValidation), Message: "malformed diff request"})
	}
	proposed := schema.NewSchema()
	for _, re := range req.Entities {
		order := make([]string, 0, len(re.Fields))
		fields := make(map[string]string, len(re.Fields))
		for _, rf := range re.Fields {
			order = append(order, rf.Name)
			fields[rf.Name] = rf.Type
		}
		entity, err := schema.ParseEntity(re.Name, order, fields)
		if err != nil {
			return writeErr(c, err)
		}
		proposed.EntityOrder = append(proposed.EntityOrder, re.Name)
		proposed.Entities[re.Name] = entity
	}
	d := s.Provider.DiffSchema(proposed)
	resp := diffResponse{
		AddedEntities:   d.AddedEntities,
		RemovedEntities: d.RemovedEntities,
		Summary:         d.Summary(),
	}
	for _, m := range d.ModifiedEntities {
		payload := diffEntityPayload{
			Entity:        m.Entity,
			AddedFields:   m.AddedFields,
			RemovedFields: m.RemovedFields,
		}
		for _, ch := range m.ChangedFields {
			payload.ChangedFields = append(payload.ChangedFields, diffChangePayload{Field: ch.Field, ChangeType: string(ch.ChangeType)})
		}
		for _, r := range m.PossibleRenames {
			payload.PossibleRenames = append(payload.PossibleRenames, diffRenamePayload{From: r.From, To: r.To, Similarity: r.Similarity})
		}
		resp.ModifiedEntities = append(resp.ModifiedEntities, payload)
	}
	return c.JSON(http.StatusOK, resp)
}
