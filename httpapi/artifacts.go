package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) registerArtifactRoutes(g *echo.Group) {
	g.GET("/artifacts", s.handleListArtifacts)
	g.GET("/artifacts/:kind", s.handleGetArtifact)
	g.PUT("/artifacts/:kind", s.handleSetArtifact)
	g.DELETE("/artifacts", s.handleDeleteArtifact)
}

func (s *Server) handleGetArtifact(c echo.Context) error {
	url := c.QueryParam("url")
	a := s.Provider.GetArtifact(url, c.Param("kind"))
	if a == nil {
		return c.JSON(http.StatusNotFound, errorBody{Error: "NOT_FOUND"})
	}
	return c.JSON(http.StatusOK, a)
}

type setArtifactRequest struct {
	URL      string         `json:"url"`
	Content  any            `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) handleSetArtifact(c echo.Context) error {
	var req setArtifactRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION", Message: err.Error()})
	}
	a := s.Provider.SetArtifact(req.URL, c.Param("kind"), req.Content, req.Metadata)
	return c.JSON(http.StatusOK, a)
}

func (s *Server) handleDeleteArtifact(c echo.Context) error {
	s.Provider.DeleteArtifact(c.QueryParam("url"))
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListArtifacts(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Provider.ListArtifacts(c.QueryParam("url")))
}
