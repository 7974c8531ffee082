package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/smartrent-ledger/internal/model"
)

// Read views.  Each one takes the read lock, so callers only ever observe
// committed state.

func (e *Engine) Asset(assetID uint64) (model.Asset, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg.Asset(assetID)
}

func (e *Engine) AllAssets(p model.Page) ([]model.Asset, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg.AllAssets(p)
}

func (e *Engine) AssetOwners(assetID uint64, p model.Page) ([]model.Holding, int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg.AssetOwners(assetID, p)
}

func (e *Engine) Holdings(assetID uint64) ([]model.Holding, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg.Holdings(assetID)
}

func (e *Engine) TopShareholder(assetID uint64) (model.Holding, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg.TopShareholder(assetID)
}

// BalanceOf returns holder's balance and ownership of an existing asset.
func (e *Engine) BalanceOf(assetID uint64, holder model.Address) (model.Holding, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	bps, err := e.reg.OwnershipBps(assetID, holder)
	if err != nil {
		return model.Holding{}, err
	}
	return model.Holding{Holder: holder, Balance: e.led.BalanceOf(assetID, holder), Bps: bps}, nil
}

func (e *Engine) AssetsByOwner(holder model.Address) []model.AssetBalance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg.AssetsByOwner(holder)
}

func (e *Engine) Listing(id uint64) (model.Listing, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg.Listing(id)
}

func (e *Engine) ActiveListings(p model.Page) ([]model.Listing, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg.ActiveListings(p)
}

func (e *Engine) ListingsBySeller(seller model.Address) []model.Listing {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg.ListingsBySeller(seller)
}

func (e *Engine) Booking(id uint64) (model.Booking, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.esc.Booking(id)
}

func (e *Engine) BookingsByAsset(assetID uint64, p model.Page) ([]model.Booking, int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, err := e.reg.Asset(assetID); err != nil {
		return nil, 0, err
	}
	out, total := e.esc.BookingsByAsset(assetID, p)
	return out, total, nil
}

func (e *Engine) BookingsByRenter(renter model.Address) []model.Booking {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.esc.BookingsByRenter(renter)
}

func (e *Engine) BookedRanges(assetID uint64) ([]model.DateRange, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, err := e.reg.Asset(assetID); err != nil {
		return nil, err
	}
	return e.esc.BookedRanges(assetID), nil
}

func (e *Engine) DatesAvailable(assetID uint64, checkIn, checkOut time.Time) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.esc.DatesAvailable(assetID, checkIn, checkOut)
}

func (e *Engine) Terms(assetID uint64) (model.RentalTerms, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, err := e.reg.Asset(assetID); err != nil {
		return model.RentalTerms{}, err
	}
	return e.esc.Terms(assetID)
}

// RentSummary is an asset's rent history.
type RentSummary struct {
	AssetID        uint64              `json:"asset_id"`
	TotalCollected decimal.Decimal     `json:"total_collected"`
	Payments       []model.RentPayment `json:"payments"`
}

func (e *Engine) Rent(assetID uint64) (RentSummary, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, err := e.reg.Asset(assetID); err != nil {
		return RentSummary{}, err
	}
	return RentSummary{
		AssetID:        assetID,
		TotalCollected: e.esc.TotalRentCollected(assetID),
		Payments:       e.esc.RentPayments(assetID),
	}, nil
}

func (e *Engine) AccessGranted(bookingID uint64, holder model.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.esc.AccessGranted(bookingID, holder)
}

// Funds returns the withdrawable balance of addr.
func (e *Engine) Funds(addr model.Address) decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tr.Balance(addr)
}

// Escrowed returns the float held for open bookings.
func (e *Engine) Escrowed() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tr.Escrowed()
}
