// Package httpapi is the thin response-envelope and error-mapping layer
// cmd/apiserver and cmd/executor share, grounded in the reference server's
// common.Response/common.ErrNo pairing: a fixed JSON envelope plus one
// central place that turns a typed internal error into an HTTP status.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ejc3/workflow/internal/apierr"
)

// Envelope is the fixed response shape every endpoint returns.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Success writes a 200 envelope carrying data.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Code: 0, Message: "success", Data: data})
}

// Created writes a 201 envelope carrying data.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Code: 0, Message: "success", Data: data})
}

// Error maps err to an HTTP status via its apierr.Kind (spec.md §7) and
// writes the matching envelope. Unrecognized errors degrade to 500.
func Error(c *gin.Context, err error) {
	status, code := statusFor(err)
	c.JSON(status, Envelope{Code: code, Message: err.Error()})
}

func statusFor(err error) (status int, code int) {
	var e *apierr.Error
	if !apierr.As(err, &e) {
		return http.StatusInternalServerError, http.StatusInternalServerError
	}
	switch e.Kind {
	case apierr.KindNotFound:
		return http.StatusNotFound, http.StatusNotFound
	case apierr.KindConflict:
		return http.StatusConflict, http.StatusConflict
	case apierr.KindValidation:
		return http.StatusBadRequest, http.StatusBadRequest
	case apierr.KindTransport:
		return http.StatusBadGateway, http.StatusBadGateway
	case apierr.KindExhausted:
		return http.StatusGone, http.StatusGone
	default:
		return http.StatusInternalServerError, http.StatusInternalServerError
	}
}
