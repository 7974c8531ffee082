package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/smartrent-ledger/internal/engine"
)

type withdrawReq struct {
	Amount decimal.Decimal `json:"amount"`
}

// MyFunds: GET /v1/my/funds
func (h *LedgerHandler) MyFunds(c echo.Context) error {
	caller, ok, err := callerAddress(c)
	if !ok {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"holder": caller, "balance": h.Engine.Funds(caller)})
}

// Withdraw: POST /v1/my/withdraw
func (h *LedgerHandler) Withdraw(c echo.Context) error {
	caller, ok, err := callerAddress(c)
	if !ok {
		return err
	}
	var req withdrawReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	w, err := h.Engine.Withdraw(c.Request().Context(), caller, engine.WithdrawInput{Amount: req.Amount})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, w)
}
