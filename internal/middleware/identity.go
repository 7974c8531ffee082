package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smartrent-ledger/internal/model"
)

// Caller returns the authenticated wallet address set by JWTAuth.
func Caller(c echo.Context) (model.Address, bool) {
	addr, ok := c.Get(CtxCaller).(model.Address)
	return addr, ok && addr != ""
}

// AccountID returns the authenticated account id set by JWTAuth.
func AccountID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(CtxAccountID).(uint64)
	return id, ok && id > 0
}

// Role returns the role claim, or "" for anonymous requests.
func Role(c echo.Context) string {
	r, _ := c.Get(CtxRole).(string)
	return r
}

// callerKey identifies the requester in rate limit keys.
func callerKey(c echo.Context) string {
	if addr, ok := Caller(c); ok {
		return addr.String()
	}
	return "anon"
}
