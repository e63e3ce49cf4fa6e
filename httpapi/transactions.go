package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Transactions are exposed as stateful sessions keyed by an opaque id
// returned from beginTransaction, since a txn.Buffer is a Go value
// with no wire representation of its own.
func (s *Server) registerTransactionRoutes(g *echo.Group) {
	g.POST("/transactions", s.handleBeginTransaction)
	g.GET("/transactions/:id/:type/:id2", s.handleTxnGet)
	g.POST("/transactions/:id/entities/:type", s.handleTxnCreate)
	g.PATCH("/transactions/:id/entities/:type/:eid", s.handleTxnUpdate)
	g.DELETE("/transactions/:id/entities/:type/:eid", s.handleTxnDelete)
	g.POST("/transactions/:id/commit", s.handleTxnCommit)
	g.POST("/transactions/:id/rollback", s.handleTxnRollback)
}

func (s *Server) handleBeginTransaction(c echo.Context) error {
	id := uuid.New().String()
	buf := s.Provider.BeginTransaction()
	s.txnMu.Lock()
	s.txns[id] = buf
	s.txnMu.Unlock()
	return c.JSON(http.StatusCreated, map[string]string{"transactionId": id})
}

func (s *Server) handleTxnGet(c echo.Context) error {
	id := c.Param("id")
	s.txnMu.Lock()
	buf, ok := s.txns[id]
	s.txnMu.Unlock()
	if !ok {
		return c.JSON(http.StatusConflict, errorBody{Error: "TRANSACTION_CLOSED"})
	}
	rec, err := buf.Get(c.Param("type"), c.Param("id2"))
	if err != nil {
		return writeErr(c, err)
	}
	if rec == nil {
		return c.JSON(http.StatusNotFound, errorBody{Error: "NOT_FOUND"})
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleTxnCreate(c echo.Context) error {
	id := c.Param("id")
	s.txnMu.Lock()
	buf, ok := s.txns[id]
	s.txnMu.Unlock()
	if !ok {
		return c.JSON(http.StatusConflict, errorBody{Error: "TRANSACTION_CLOSED"})
	}
	var data map[string]any
	if err := c.Bind(&data); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION", Message: err.Error()})
	}
	newID, err := buf.Create(c.Param("type"), "", data)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": newID})
}

func (s *Server) handleTxnUpdate(c echo.Context) error {
	id := c.Param("id")
	s.txnMu.Lock()
	buf, ok := s.txns[id]
	s.txnMu.Unlock()
	if !ok {
		return c.JSON(http.StatusConflict, errorBody{Error: "TRANSACTION_CLOSED"})
	}
	var data map[string]any
	if err := c.Bind(&data); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "VALIDATION", Message: err.Error()})
	}
	if err := buf.Update(c.Param("type"), c.Param("eid"), data); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleTxnDelete(c echo.Context) error {
	id := c.Param("id")
	s.txnMu.Lock()
	buf, ok := s.txns[id]
	s.txnMu.Unlock()
	if !ok {
		return c.JSON(http.StatusConflict, errorBody{Error: "TRANSACTION_CLOSED"})
	}
	if err := buf.Delete(c.Param("type"), c.Param("eid")); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleTxnCommit(c echo.Context) error {
	id := c.Param("id")
	s.txnMu.Lock()
	buf, ok := s.txns[id]
	delete(s.txns, id)
	s.txnMu.Unlock()
	if !ok {
		return c.JSON(http.StatusConflict, errorBody{Error: "TRANSACTION_CLOSED"})
	}
	if err := buf.Commit(c.Request().Context()); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleTxnRollback(c echo.Context) error {
	id := c.Param("id")
	s.txnMu.Lock()
	buf, ok := s.txns[id]
	delete(s.txns, id)
	s.txnMu.Unlock()
	if !ok {
		return c.JSON(http.StatusConflict, errorBody{Error: "TRANSACTION_CLOSED"})
	}
	if err := buf.Rollback(); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
