package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smartrent-ledger/internal/model"
)

// Context keys set by JWTAuth.
const (
	CtxCaller    = "user_id"
	CtxAccountID = "account_id"
	CtxRole      = "role"
)

var (
	errMissingBearer = errors.New("missing bearer token")
	errInvalidToken  = errors.New("invalid token")
	errInvalidSub    = errors.New("invalid subject")
)

// authenticate validates the Bearer token of c and stores the caller's
// address, account id and role in the context.
func authenticate(c echo.Context, secret string) error {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return errMissingBearer
	}
	tok, err := jwt.Parse(strings.TrimPrefix(auth, "Bearer "), func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return errInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return errInvalidToken
	}
	sub, _ := claims["sub"].(string)
	addr, err := model.ParseAddress(sub)
	if err != nil {
		return errInvalidSub
	}

	c.Set(CtxCaller, addr)
	c.Set(CtxRole, claims["role"])
	if aid, ok := claims["aid"].(float64); ok && aid > 0 {
		c.Set(CtxAccountID, uint64(aid))
	}
	return nil
}

// JWTAuth rejects requests without a valid Bearer access token with 401.
// A token whose subject is not a wallet address is rejected too.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := authenticate(c, secret); err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
			}
			return next(c)
		}
	}
}

// OptionalJWTAuth sets the caller when a valid token is present and lets
// anonymous requests through.
func OptionalJWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_ = authenticate(c, secret)
			return next(c)
		}
	}
}
