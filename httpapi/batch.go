package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"eve.evalgo.org/provider"
)

func (s *Server) registerBatchRoutes(g *echo.Group) {
	g.POST("/entities/:type/batch/create", s.handleCreateMany)
	g.POST("/entities/:type/batch/update", s.handleUpdateMany)
	g.POST("/entities/:type/batch/delete", s.handleDeleteMany)
	g.POST("/batch/perform", s.handlePerformMany)
}

type batchResponse struct {
	Results any             `json:"results"`
	Errors  []batchErrorDTO `json:"errors,omitempty"`
}

type batchErrorDTO struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

func toBatchErrorDTOs(errs []provider.BatchError) []batchErrorDTO {
	out := make([]batchErrorDTO, len(errs))
	for i, e := range errs {
		out[i] = batchErrorDTO{Index: e.Index, Error: e.Err.Error()}
	}
	return out
}

func (s *Server) handleCreateMany(c echo.Context) error {
	var items []provider.CreateManyInput
	if err := c.Bind(&items); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION", Message: err.Error()})
	}
	results, errs := s.Provider.CreateMany(c.Request().Context(), c.Param("type"), items)
	return c.JSON(http.StatusOK, batchResponse{Results: results, Errors: toBatchErrorDTOs(errs)})
}

func (s *Server) handleUpdateMany(c echo.Context) error {
	var items []provider.UpdateManyInput
	if err := c.Bind(&items); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION", Message: err.Error()})
	}
	results, errs := s.Provider.UpdateMany(c.Request().Context(), c.Param("type"), items)
	return c.JSON(http.StatusOK, batchResponse{Results: results, Errors: toBatchErrorDTOs(errs)})
}

func (s *Server) handleDeleteMany(c echo.Context) error {
	var ids []string
	if err := c.Bind(&ids); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION", Message: err.Error()})
	}
	results, errs := s.Provider.DeleteMany(c.Request().Context(), c.Param("type"), ids)
	return c.JSON(http.StatusOK, batchResponse{Results: results, Errors: toBatchErrorDTOs(errs)})
}

func (s *Server) handlePerformMany(c echo.Context) error {
	var ops []provider.PerformOp
	if err := c.Bind(&ops); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION", Message: err.Error()})
	}
	out, err := s.Provider.PerformMany(c.Request().Context(), ops)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
