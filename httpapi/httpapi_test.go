package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"eve.evalgo.org/provider"
	"eve.evalgo.org/schema"
)

func newTestServer() (*echo.Echo, *Server) {
	p := provider.New(schema.NewSchema())
	s := NewServer(p, DefaultConfig())
	e := echo.New()
	s.RegisterRoutes(e)
	return e, s
}

func doRequest(e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetEntity(t *testing.T) {
	e, _ := newTestServer()

	rec := doRequest(e, http.MethodPost, "/v1/entities/Task/t1", map[string]any{"title": "write tests"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(e, http.MethodGet, "/v1/entities/Task/t1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "write tests", got["title"])
}

func TestGetMissingEntityReturns404(t *testing.T) {
	e, _ := newTestServer()
	rec := doRequest(e, http.MethodGet, "/v1/entities/Task/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateDuplicateReturns409(t *testing.T) {
	e, _ := newTestServer()
	doRequest(e, http.MethodPost, "/v1/entities/Task/t1", map[string]any{"title": "a"})
	rec := doRequest(e, http.MethodPost, "/v1/entities/Task/t1", map[string]any{"title": "b"})
	require.Equal(t, http.StatusConflict, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ALREADY_EXISTS", body.Error)
}

func TestInvalidNamespaceReturns400(t *testing.T) {
	e, s := newTestServer()
	s.Config.NamespaceRequired = true
	rec := doRequest(e, http.MethodGet, "/v1/entities/Task", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "INVALID_NAMESPACE", body.Error)
}

func TestUpdateAndDeleteEntity(t *testing.T) {
	e, _ := newTestServer()
	doRequest(e, http.MethodPost, "/v1/entities/Task/t1", map[string]any{"title": "a", "done": false})

	rec := doRequest(e, http.MethodPatch, "/v1/entities/Task/t1", map[string]any{"done": true})
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, true, got["done"])

	rec = doRequest(e, http.MethodDelete, "/v1/entities/Task/t1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(e, http.MethodDelete, "/v1/entities/Task/t1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRelateAndRelated(t *testing.T) {
	e, _ := newTestServer()
	doRequest(e, http.MethodPost, "/v1/entities/Task/t1", map[string]any{})
	doRequest(e, http.MethodPost, "/v1/entities/Task/t2", map[string]any{})

	rec := doRequest(e, http.MethodPost, "/v1/entities/Task/t1/relations/blocks", map[string]any{"toType": "Task", "toId": "t2"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(e, http.MethodGet, "/v1/entities/Task/t1/relations/blocks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var related []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &related))
	require.Len(t, related, 1)
	require.Equal(t, "t2", related[0]["$id"])
}

func TestBatchCreateCollectsPerItemErrors(t *testing.T) {
	e, _ := newTestServer()
	doRequest(e, http.MethodPost, "/v1/entities/Task/dup", map[string]any{})

	items := []map[string]any{
		{"id": "t1", "data": map[string]any{"title": "a"}},
		{"id": "dup", "data": map[string]any{"title": "b"}},
	}
	rec := doRequest(e, http.MethodPost, "/v1/entities/Task/batch/create", items)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	require.Equal(t, 1, resp.Errors[0].Index)
}

func TestTransactionCommitIsVisibleAfterward(t *testing.T) {
	e, _ := newTestServer()

	rec := doRequest(e, http.MethodPost, "/v1/transactions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var begun map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &begun))
	txnID := begun["transactionId"]

	rec = doRequest(e, http.MethodPost, "/v1/transactions/"+txnID+"/entities/Task", map[string]any{"title": "from txn"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var staged map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &staged))

	rec = doRequest(e, http.MethodPost, "/v1/transactions/"+txnID+"/commit", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(e, http.MethodGet, "/v1/entities/Task/"+staged["id"], nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodPost, "/v1/transactions/"+txnID+"/commit", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestStatsReportsEntityAndArtifactCounts(t *testing.T) {
	e, s := newTestServer()
	s.Provider.Schema.EntityOrder = []string{"Task"}
	doRequest(e, http.MethodPost, "/v1/entities/Task/t1", map[string]any{})

	// /admin is unprotected when no AdminSigningKey is configured.
	rec := doRequest(e, http.MethodGet, "/admin/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.EntityCounts["Task"])
	// The empty record still serializes to "{}", so it gets an embedding.
	require.Equal(t, 1, stats.ArtifactCount)
}

func TestSchemaVersionStartsAtZero(t *testing.T) {
	e, _ := newTestServer()
	rec := doRequest(e, http.MethodGet, "/admin/schema/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 0, body["version"])
}

func TestSchemaDiffReportsAddedAndModified(t *testing.T) {
	s := schema.NewSchema()
	entity, err := schema.ParseEntity("Post", []string{"title"}, map[string]string{"title": "string"})
	require.NoError(t, err)
	s.EntityOrder = append(s.EntityOrder, "Post")
	s.Entities["Post"] = entity
	srv := NewServer(provider.New(s), DefaultConfig())
	e := echo.New()
	srv.RegisterRoutes(e)

	rec := doRequest(e, http.MethodPost, "/admin/schema/diff", map[string]any{
		"entities": []map[string]any{
			{"name": "Post", "fields": []map[string]string{
				{"name": "title", "type": "string"},
				{"name": "body", "type": "markdown?"},
			}},
			{"name": "Comment", "fields": []map[string]string{
				{"name": "text", "type": "string"},
			}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body diffResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, []string{"Comment"}, body.AddedEntities)
	require.Len(t, body.ModifiedEntities, 1)
	require.Equal(t, "Post", body.ModifiedEntities[0].Entity)
	require.Equal(t, []string{"body"}, body.ModifiedEntities[0].AddedFields)
	require.Contains(t, body.Summary, "+ entity Comment")
}
