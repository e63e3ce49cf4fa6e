package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"eve.evalgo.org/action"
	"eve.evalgo.org/semantic/runtime"
)

func (s *Server) registerActionRoutes(g *echo.Group) {
	g.POST("/actions", s.handleCreateAction)
	g.GET("/actions/:id", s.handleGetAction)
	g.GET("/actions", s.handleListActions)
	g.POST("/actions/:id/start", s.handleStartAction)
	g.POST("/actions/:id/complete", s.handleCompleteAction)
	g.POST("/actions/:id/fail", s.handleFailAction)
	g.POST("/actions/:id/retry", s.handleRetryAction)
	g.POST("/actions/:id/cancel", s.handleCancelAction)
}

type createActionRequest struct {
	Actor      string         `json:"actor"`
	ActorData  map[string]any `json:"actorData"`
	Verb       string         `json:"verb"`
	Object     string         `json:"object"`
	ObjectData map[string]any `json:"objectData"`
	Meta       map[string]any `json:"meta"`
}

func (s *Server) handleCreateAction(c echo.Context) error {
	var req createActionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION", Message: err.Error()})
	}
	a := s.Provider.CreateAction(c.Request().Context(), action.CreateInput{
		Actor:      req.Actor,
		ActorData:  req.ActorData,
		Verb:       req.Verb,
		Object:     req.Object,
		ObjectData: req.ObjectData,
		Meta:       req.Meta,
	})
	return c.JSON(http.StatusCreated, a)
}

func (s *Server) handleGetAction(c echo.Context) error {
	a := s.Provider.GetAction(c.Param("id"))
	if a == nil {
		return c.JSON(http.StatusNotFound, errorBody{Error: "NOT_FOUND"})
	}
	return c.JSON(http.StatusOK, a)
}

func (s *Server) handleListActions(c echo.Context) error {
	f := action.ListFilter{Status: runtime.Status(c.QueryParam("status"))}
	return c.JSON(http.StatusOK, s.Provider.ListActions(f))
}

func (s *Server) handleStartAction(c echo.Context) error {
	a, err := s.Provider.StartAction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

type completeActionRequest struct {
	Result map[string]any `json:"result"`
}

func (s *Server) handleCompleteAction(c echo.Context) error {
	var req completeActionRequest
	_ = c.Bind(&req)
	a, err := s.Provider.CompleteAction(c.Request().Context(), c.Param("id"), req.Result)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

type failActionRequest struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Data    map[string]any `json:"data"`
}

func (s *Server) handleFailAction(c echo.Context) error {
	var req failActionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION", Message: err.Error()})
	}
	a, err := s.Provider.FailAction(c.Request().Context(), c.Param("id"), &runtime.ActionFailure{
		Message: req.Message,
		Code:    req.Code,
		Data:    req.Data,
	})
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (s *Server) handleRetryAction(c echo.Context) error {
	a, err := s.Provider.RetryAction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (s *Server) handleCancelAction(c echo.Context) error {
	a, err := s.Provider.CancelAction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, a)
}
