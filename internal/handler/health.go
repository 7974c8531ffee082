package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smartrent-ledger/internal/engine"
)

// Health reports liveness and the last committed journal sequence.
func Health(e *engine.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "seq": e.Seq()})
	}
}
