// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"feastly/internal/http/middleware"
	"feastly/internal/modules/catalog"
	"feastly/internal/modules/coupon"
	"feastly/internal/modules/order"
	"feastly/internal/modules/partner"
	"feastly/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, kind, msg string) {
	writeJSON(c, status, errorResponse{Error: msg, Kind: kind})
}

// writeDomainError maps the module error taxonomy onto HTTP statuses with a
// machine-readable kind alongside the display message.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, partner.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, order.ErrInvalidState):
		writeError(c, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, order.ErrConflict), errors.Is(err, partner.ErrConflict):
		writeError(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, order.ErrForbidden):
		writeError(c, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, order.ErrValidation), errors.Is(err, coupon.ErrInvalid):
		writeError(c, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal", "internal error")
	}
}

// callerActor reads the identity the auth middleware stashed on the context.
func callerActor(c *gin.Context) order.Actor {
	return order.Actor{
		Type: c.GetString(middleware.ActorTypeKey),
		ID:   types.ID(c.GetString(middleware.ActorIDKey)),
	}
}
