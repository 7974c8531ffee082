package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smartrent-ledger/internal/engine"
	"github.com/iliyamo/smartrent-ledger/internal/model"
)

// LedgerHandler serves the asset, marketplace, rental and funds endpoints
// on top of one engine.
type LedgerHandler struct {
	Engine *engine.Engine
}

func NewLedgerHandler(e *engine.Engine) *LedgerHandler {
	if e == nil {
		panic("nil engine passed to NewLedgerHandler")
	}
	return &LedgerHandler{Engine: e}
}

type mintReq struct {
	AssetID         uint64 `json:"asset_id"`
	TotalShares     uint64 `json:"total_shares"`
	Holder          string `json:"holder"`
	MetadataPointer string `json:"metadata_pointer"`
}

type transferReq struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// Mint: POST /v1/assets (operator only).
func (h *LedgerHandler) Mint(c echo.Context) error {
	caller, ok, err := callerAddress(c)
	if !ok {
		return err
	}
	var req mintReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	holder, ok, err := parseAddressParam(c, req.Holder, "holder")
	if !ok {
		return err
	}
	asset, err := h.Engine.Mint(c.Request().Context(), caller, engine.MintInput{
		AssetID:         req.AssetID,
		TotalShares:     req.TotalShares,
		Holder:          holder,
		MetadataPointer: strings.TrimSpace(req.MetadataPointer),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, asset)
}

// Transfer: POST /v1/assets/:id/transfer moves the caller's own shares.
func (h *LedgerHandler) Transfer(c echo.Context) error {
	caller, ok, err := callerAddress(c)
	if !ok {
		return err
	}
	assetID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	var req transferReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	to, ok, err := parseAddressParam(c, req.To, "to")
	if !ok {
		return err
	}
	change, err := h.Engine.Transfer(c.Request().Context(), caller, engine.TransferInput{
		AssetID: assetID,
		To:      to,
		Amount:  req.Amount,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, change)
}

// ListAssets: GET /v1/assets
func (h *LedgerHandler) ListAssets(c echo.Context) error {
	p := pageFrom(c)
	items, total := h.Engine.AllAssets(p)
	return c.JSON(http.StatusOK, paged(items, total, p))
}

// GetAsset: GET /v1/assets/:id
func (h *LedgerHandler) GetAsset(c echo.Context) error {
	assetID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	asset, err := h.Engine.Asset(assetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, asset)
}

// AssetOwners: GET /v1/assets/:id/owners
func (h *LedgerHandler) AssetOwners(c echo.Context) error {
	assetID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	p := pageFrom(c)
	items, total, err := h.Engine.AssetOwners(assetID, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, paged(items, total, p))
}

// TopShareholder: GET /v1/assets/:id/top-shareholder
func (h *LedgerHandler) TopShareholder(c echo.Context) error {
	assetID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	top, err := h.Engine.TopShareholder(assetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, top)
}

// Balance: GET /v1/assets/:id/balances/:holder
func (h *LedgerHandler) Balance(c echo.Context) error {
	assetID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	holder, ok, err := parseAddressParam(c, c.Param("holder"), "holder")
	if !ok {
		return err
	}
	bal, err := h.Engine.BalanceOf(assetID, holder)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, bal)
}

// HolderAssets: GET /v1/holders/:address/assets
func (h *LedgerHandler) HolderAssets(c echo.Context) error {
	holder, ok, err := parseAddressParam(c, c.Param("address"), "address")
	if !ok {
		return err
	}
	items := h.Engine.AssetsByOwner(holder)
	if items == nil {
		items = []model.AssetBalance{}
	}
	return c.JSON(http.StatusOK, echo.Map{"holder": holder, "assets": items})
}
