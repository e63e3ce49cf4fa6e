package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"eve.evalgo.org/eventbus"
	"eve.evalgo.org/semantic/runtime"
)

func newEvent(req emitRequest) *runtime.Event {
	e := runtime.NewEvent(req.Actor, req.EventName).WithObject(req.Object, req.ObjectData)
	if req.Meta != nil {
		e = e.WithMeta(req.Meta)
	}
	return e
}

func (s *Server) registerEventRoutes(g *echo.Group) {
	g.POST("/events", s.handleEmit)
	g.GET("/events", s.handleListEvents)
}

type emitRequest struct {
	Actor      string         `json:"actor"`
	EventName  string         `json:"eventName"`
	Object     string         `json:"object"`
	ObjectData map[string]any `json:"objectData"`
	Meta       map[string]any `json:"meta"`
}

func (s *Server) handleEmit(c echo.Context) error {
	var req emitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION", Message: err.Error()})
	}
	if req.EventName == "" {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION", Message: "eventName is required"})
	}
	e := newEvent(req)
	s.Provider.Emit(c.Request().Context(), e)
	return c.JSON(http.StatusOK, e)
}

func (s *Server) handleListEvents(c echo.Context) error {
	f := eventbus.ListFilter{
		Event:  c.QueryParam("event"),
		Actor:  c.QueryParam("actor"),
		Object: c.QueryParam("object"),
		Limit:  intParam(c, "limit", 0),
	}
	events := s.Provider.ListEvents(f)
	return c.JSON(http.StatusOK, events)
}
