package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/smartrent-ledger/internal/engine"
	"github.com/iliyamo/smartrent-ledger/internal/model"
)

type createListingReq struct {
	AssetID       uint64          `json:"asset_id"`
	Amount        uint64          `json:"amount"`
	PricePerShare decimal.Decimal `json:"price_per_share"`
}

type buyReq struct {
	Amount  uint64          `json:"amount"`
	Payment decimal.Decimal `json:"payment"`
}

// CreateListing: POST /v1/listings
func (h *LedgerHandler) CreateListing(c echo.Context) error {
	caller, ok, err := callerAddress(c)
	if !ok {
		return err
	}
	var req createListingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	l, err := h.Engine.CreateListing(c.Request().Context(), caller, engine.CreateListingInput(req))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, l)
}

// Buy: POST /v1/listings/:id/buy.  The payment must equal amount times the
// listing price exactly.
func (h *LedgerHandler) Buy(c echo.Context) error {
	caller, ok, err := callerAddress(c)
	if !ok {
		return err
	}
	listingID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	var req buyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	purchase, err := h.Engine.BuyFromListing(c.Request().Context(), caller, engine.BuyInput{
		ListingID: listingID,
		Amount:    req.Amount,
		Payment:   req.Payment,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, purchase)
}

// CancelListing: DELETE /v1/listings/:id (seller only).
func (h *LedgerHandler) CancelListing(c echo.Context) error {
	caller, ok, err := callerAddress(c)
	if !ok {
		return err
	}
	listingID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	l, err := h.Engine.CancelListing(c.Request().Context(), caller, engine.ListingRef{ListingID: listingID})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

// ListListings: GET /v1/listings (active only).
func (h *LedgerHandler) ListListings(c echo.Context) error {
	p := pageFrom(c)
	items, total := h.Engine.ActiveListings(p)
	return c.JSON(http.StatusOK, paged(items, total, p))
}

// GetListing: GET /v1/listings/:id
func (h *LedgerHandler) GetListing(c echo.Context) error {
	listingID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	l, err := h.Engine.Listing(listingID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

// HolderListings: GET /v1/holders/:address/listings
func (h *LedgerHandler) HolderListings(c echo.Context) error {
	seller, ok, err := parseAddressParam(c, c.Param("address"), "address")
	if !ok {
		return err
	}
	items := h.Engine.ListingsBySeller(seller)
	if items == nil {
		items = []model.Listing{}
	}
	return c.JSON(http.StatusOK, echo.Map{"seller": seller, "listings": items})
}
