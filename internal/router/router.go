package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/smartrent-ledger/internal/engine"
	"github.com/iliyamo/smartrent-ledger/internal/handler"
	"github.com/iliyamo/smartrent-ledger/internal/middleware"
	"github.com/iliyamo/smartrent-ledger/internal/model"
)

// RegisterRoutes registers the health check and the Prometheus scrape
// endpoint.
func RegisterRoutes(e *echo.Echo, eng *engine.Engine) {
	e.GET("/healthz", handler.Health(eng))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the account routes.  Nonce, register, login and
// refresh need no session; logout accepts either a refresh token or a bearer
// token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/nonce", a.Nonce)
	g.POST("/register", a.Register) // needs a signed nonce
	g.POST("/login", a.Login)
	g.POST("/wallet", a.WalletLogin)
	g.POST("/refresh", a.Refresh)              // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess) // keeps the refresh token
	g.POST("/logout", a.Logout, middleware.OptionalJWTAuth(jwtSecret))

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleMember, model.RoleOperator))
}

// RegisterPublic registers the unauthenticated read endpoints.  cache wraps
// every route; pass a pass-through when caching is off.
func RegisterPublic(e *echo.Echo, h *handler.LedgerHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1", cache)

	g.GET("/assets", h.ListAssets)
	g.GET("/assets/:id", h.GetAsset)
	g.GET("/assets/:id/owners", h.AssetOwners)
	g.GET("/assets/:id/top-shareholder", h.TopShareholder)
	g.GET("/assets/:id/balances/:holder", h.Balance)
	g.GET("/assets/:id/bookings", h.AssetBookings)
	g.GET("/assets/:id/booked-dates", h.BookedDates)
	g.GET("/assets/:id/availability", h.Availability)
	g.GET("/assets/:id/rent", h.Rent)
	g.GET("/assets/:id/terms", h.GetTerms)

	g.GET("/listings", h.ListListings)
	g.GET("/listings/:id", h.GetListing)

	g.GET("/holders/:address/assets", h.HolderAssets)
	g.GET("/holders/:address/listings", h.HolderListings)

	g.GET("/bookings/:id", h.GetBooking)
	// Polled by the lock actuator.
	g.GET("/bookings/:id/access", h.Access)
}

// RegisterLedger registers the authenticated operations.  extra runs after
// authentication, so rate limit keys can include the caller.
func RegisterLedger(e *echo.Echo, h *handler.LedgerHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	mw := append([]echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleMember, model.RoleOperator),
	}, extra...)
	g := e.Group("/v1", mw...)

	g.POST("/assets", h.Mint, middleware.RequireRole(model.RoleOperator))
	g.POST("/assets/:id/transfer", h.Transfer)
	g.PUT("/assets/:id/terms", h.SetTerms)
	g.POST("/assets/:id/bookings", h.Book)

	g.POST("/listings", h.CreateListing)
	g.POST("/listings/:id/buy", h.Buy)
	g.DELETE("/listings/:id", h.CancelListing)

	g.POST("/bookings/:id/activate", h.Activate)
	g.POST("/bookings/:id/complete", h.Complete)
	g.DELETE("/bookings/:id", h.CancelBooking)

	g.GET("/my/funds", h.MyFunds)
	g.POST("/my/withdraw", h.Withdraw)
	g.GET("/my/bookings", h.MyBookings)
}
