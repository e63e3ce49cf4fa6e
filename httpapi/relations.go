package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"eve.evalgo.org/provider"
)

func (s *Server) registerRelationRoutes(g *echo.Group) {
	g.POST("/entities/:type/:id/relations/:relation", s.handleRelate)
	g.DELETE("/entities/:type/:id/relations/:relation/:toType/:toId", s.handleUnrelate)
	g.GET("/entities/:type/:id/relations/:relation", s.handleRelated)
}

type relateRequest struct {
	ToType string `json:"toType"`
	ToID   string `json:"toId"`
}

func (s *Server) handleRelate(c echo.Context) error {
	var req relateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION", Message: err.Error()})
	}
	s.Provider.Relate(c.Request().Context(), c.Param("type"), c.Param("id"), c.Param("relation"), req.ToType, req.ToID, provider.RelateOptions{})
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleUnrelate(c echo.Context) error {
	s.Provider.Unrelate(c.Param("type"), c.Param("id"), c.Param("relation"), c.Param("toType"), c.Param("toId"))
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRelated(c echo.Context) error {
	records := s.Provider.Related(c.Param("type"), c.Param("id"), c.Param("relation"))
	return c.JSON(http.StatusOK, records)
}
