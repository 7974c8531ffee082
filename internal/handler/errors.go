package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/smartrent-ledger/internal/model"
)

// statusOf maps an engine error kind to an HTTP status.
func statusOf(err error) int {
	if model.IsNotFound(err) {
		return http.StatusNotFound
	}
	switch model.KindOf(err) {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindAuthorization:
		return http.StatusForbidden
	case model.KindInsufficientBalance, model.KindInsufficientPayment:
		return http.StatusPaymentRequired
	case model.KindStateConflict:
		return http.StatusConflict
	case model.KindArithmetic:
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": kind, "message": reason}.  Errors outside
// the engine taxonomy are logged and reported without detail.
func respondError(c echo.Context, err error) error {
	status := statusOf(err)
	var me *model.Error
	if errors.As(err, &me) {
		return c.JSON(status, echo.Map{"error": string(me.Kind), "message": me.Reason})
	}
	if status == http.StatusServiceUnavailable {
		return c.JSON(status, echo.Map{"error": "unavailable", "message": err.Error()})
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return c.JSON(status, echo.Map{"error": "internal", "message": "internal error"})
}
