package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smartrent-ledger/internal/middleware"
	"github.com/iliyamo/smartrent-ledger/internal/model"
)

const dbTimeout = 5 * time.Second

// pageResp wraps one page of a list endpoint.
type pageResp[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func paged[T any](items []T, total int, p model.Page) pageResp[T] {
	if items == nil {
		items = []T{}
	}
	p = p.Normalize()
	return pageResp[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}
}

// pageFrom reads ?page= and ?page_size=.  Bad values fall back to defaults.
func pageFrom(c echo.Context) model.Page {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	return model.Page{Page: page, PageSize: size}.Normalize()
}

// callerAddress returns the authenticated wallet address or writes 401.
func callerAddress(c echo.Context) (model.Address, bool, error) {
	addr, ok := middleware.Caller(c)
	if !ok {
		return "", false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return addr, true, nil
}

// pathID parses a positive uint64 path parameter or writes 400.
func pathID(c echo.Context, name string) (uint64, bool, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false, c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "invalid " + name})
	}
	return id, true, nil
}

// parseAddressParam parses an address from a path or query value or writes 400.
func parseAddressParam(c echo.Context, raw, name string) (model.Address, bool, error) {
	addr, err := model.ParseAddress(raw)
	if err != nil {
		return "", false, c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "invalid " + name})
	}
	return addr, true, nil
}

// parseDay accepts 2006-01-02 or RFC3339 and returns UTC.
func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": msg})
}
