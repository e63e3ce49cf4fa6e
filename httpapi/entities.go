package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"eve.evalgo.org/store"
)

func (s *Server) registerEntityRoutes(g *echo.Group) {
	g.GET("/entities/:type/:id", s.handleGet)
	g.GET("/entities/:type", s.handleList)
	g.POST("/entities/:type", s.handleCreate)
	g.POST("/entities/:type/:id", s.handleCreateWithID)
	g.PATCH("/entities/:type/:id", s.handleUpdate)
	g.DELETE("/entities/:type/:id", s.handleDelete)
}

func (s *Server) handleGet(c echo.Context) error {
	rec := s.Provider.Get(c.Param("type"), c.Param("id"))
	if rec == nil {
		return c.JSON(http.StatusNotFound, errorBody{Error: "NOT_FOUND"})
	}
	return c.JSON(http.StatusOK, rec)
}

// listOptionsFromQuery parses offset/limit/orderBy from the query
// string; where-clauses arrive as a JSON object under "where" since
// map-shaped filters do not fit flat query params.
func listOptionsFromQuery(c echo.Context) store.ListOptions {
	opts := store.ListOptions{}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := c.QueryParam("orderBy"); v != "" {
		desc := c.QueryParam("orderDesc") == "true"
		opts.OrderBy = []store.OrderTerm{{Field: v, Desc: desc}}
	}
	if v := c.QueryParam("where"); v != "" {
		var where map[string]any
		if err := json.Unmarshal([]byte(v), &where); err == nil {
			opts.Where = where
		}
	}
	return opts
}

func (s *Server) handleList(c echo.Context) error {
	records, err := s.Provider.List(c.Param("type"), listOptionsFromQuery(c))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleCreate(c echo.Context) error {
	var data map[string]any
	if err := c.Bind(&data); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION", Message: err.Error()})
	}
	rec, err := s.Provider.Create(c.Request().Context(), c.Param("type"), "", data)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (s *Server) handleCreateWithID(c echo.Context) error {
	var data map[string]any
	if err := c.Bind(&data); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION", Message: err.Error()})
	}
	rec, err := s.Provider.Create(c.Request().Context(), c.Param("type"), c.Param("id"), data)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (s *Server) handleUpdate(c echo.Context) error {
	var data map[string]any
	if err := c.Bind(&data); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION", Message: err.Error()})
	}
	rec, err := s.Provider.Update(c.Request().Context(), c.Param("type"), c.Param("id"), data)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleDelete(c echo.Context) error {
	ok, err := s.Provider.Delete(c.Request().Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody{Error: "NOT_FOUND"})
	}
	return c.NoContent(http.StatusNoContent)
}
