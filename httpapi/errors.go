// Package httpapi exposes a Provider over HTTP: a public /v1 REST
// surface plus a bearer-token protected /admin group.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"eve.evalgo.org/schema"
)

// errorStatus maps a schema.Kind to the HTTP status it carries.
func errorStatus(kind schema.Kind) int {
	switch kind {
	case schema.KindNotFound:
		return http.StatusNotFound
	case schema.KindAlreadyExists:
		return http.StatusConflict
	case schema.KindValidation, schema.KindInvalidSchema:
		return http.StatusBadRequest
	case schema.KindInvalidStateTransition, schema.KindTransactionClosed:
		return http.StatusConflict
	case schema.KindCircularDependency:
		return http.StatusBadRequest
	case schema.KindCapabilityNotSupported:
		return http.StatusNotImplemented
	case schema.KindEmbeddingBackend:
		return http.StatusBadGateway
	case schema.KindSubscriber:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON shape every error response carries.
type errorBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Path    string   `json:"path,omitempty"`
	Cycle   []string `json:"cycle,omitempty"`
}

// writeErr renders err as a JSON body with the status its Kind
// carries, falling back to 500 for errors not produced by schema.New.
func writeErr(c echo.Context, err error) error {
	var se *schema.Error
	if !errors.As(err, &se) {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "INTERNAL", Message: err.Error()})
	}
	body := errorBody{Error: string(se.Kind), Message: se.Message, Path: se.Path, Cycle: se.Cycle}
	return c.JSON(errorStatus(se.Kind), body)
}
