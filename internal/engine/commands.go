package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/smartrent-ledger/internal/model"
	"github.com/iliyamo/smartrent-ledger/internal/txn"
)

// Operation inputs.  They are journaled as-is and decoded again on replay.

type MintInput struct {
	AssetID         uint64        `json:"asset_id"`
	TotalShares     uint64        `json:"total_shares"`
	Holder          model.Address `json:"holder"`
	MetadataPointer string        `json:"metadata_pointer"`
}

type TransferInput struct {
	AssetID uint64        `json:"asset_id"`
	To      model.Address `json:"to"`
	Amount  uint64        `json:"amount"`
}

type CreateListingInput struct {
	AssetID       uint64          `json:"asset_id"`
	Amount        uint64          `json:"amount"`
	PricePerShare decimal.Decimal `json:"price_per_share"`
}

type BuyInput struct {
	ListingID uint64          `json:"listing_id"`
	Amount    uint64          `json:"amount"`
	Payment   decimal.Decimal `json:"payment"`
}

type ListingRef struct {
	ListingID uint64 `json:"listing_id"`
}

type TermsInput struct {
	AssetID     uint64          `json:"asset_id"`
	PricePerDay decimal.Decimal `json:"price_per_day"`
}

type BookInput struct {
	AssetID  uint64          `json:"asset_id"`
	CheckIn  time.Time       `json:"check_in"`
	CheckOut time.Time       `json:"check_out"`
	Payment  decimal.Decimal `json:"payment"`
}

type BookingRef struct {
	BookingID uint64 `json:"booking_id"`
}

type WithdrawInput struct {
	Amount decimal.Decimal `json:"amount"`
}

// Withdrawal is the result of a successful withdraw.
type Withdrawal struct {
	Holder    model.Address   `json:"holder"`
	Amount    decimal.Decimal `json:"amount"`
	Remaining decimal.Decimal `json:"remaining"`
}

// Mint creates an asset with all shares held by in.Holder.
func (e *Engine) Mint(ctx context.Context, caller model.Address, in MintInput) (model.Asset, error) {
	return run(ctx, e, model.EventAssetMinted, caller, in, e.mint(in))
}

func (e *Engine) mint(in MintInput) func(*txn.Tx, time.Time) (model.Asset, error) {
	return func(tx *txn.Tx, at time.Time) (model.Asset, error) {
		return e.led.MintTx(tx, in.AssetID, in.TotalShares, in.Holder, in.MetadataPointer, at)
	}
}

// Transfer moves caller's shares to in.To.
func (e *Engine) Transfer(ctx context.Context, caller model.Address, in TransferInput) (model.BalanceChange, error) {
	return run(ctx, e, model.EventSharesTransferred, caller, in, e.transfer(caller, in))
}

func (e *Engine) transfer(caller model.Address, in TransferInput) func(*txn.Tx, time.Time) (model.BalanceChange, error) {
	return func(tx *txn.Tx, _ time.Time) (model.BalanceChange, error) {
		return e.led.TransferFromTx(tx, caller, in.AssetID, caller, in.To, in.Amount)
	}
}

// CreateListing offers caller's shares for sale.
func (e *Engine) CreateListing(ctx context.Context, caller model.Address, in CreateListingInput) (model.Listing, error) {
	return run(ctx, e, model.EventListingCreated, caller, in, e.createListing(caller, in))
}

func (e *Engine) createListing(caller model.Address, in CreateListingInput) func(*txn.Tx, time.Time) (model.Listing, error) {
	return func(tx *txn.Tx, at time.Time) (model.Listing, error) {
		return e.reg.CreateListingTx(tx, caller, in.AssetID, in.Amount, in.PricePerShare, at)
	}
}

// BuyFromListing purchases shares from a listing.
func (e *Engine) BuyFromListing(ctx context.Context, caller model.Address, in BuyInput) (model.Purchase, error) {
	return run(ctx, e, model.EventListingPurchased, caller, in, e.buy(caller, in))
}

func (e *Engine) buy(caller model.Address, in BuyInput) func(*txn.Tx, time.Time) (model.Purchase, error) {
	return func(tx *txn.Tx, at time.Time) (model.Purchase, error) {
		return e.reg.BuyFromListingTx(tx, caller, in.ListingID, in.Amount, in.Payment, at)
	}
}

// CancelListing closes one of caller's listings.
func (e *Engine) CancelListing(ctx context.Context, caller model.Address, in ListingRef) (model.Listing, error) {
	return run(ctx, e, model.EventListingCancelled, caller, in, e.cancelListing(caller, in))
}

func (e *Engine) cancelListing(caller model.Address, in ListingRef) func(*txn.Tx, time.Time) (model.Listing, error) {
	return func(tx *txn.Tx, at time.Time) (model.Listing, error) {
		return e.reg.CancelListingTx(tx, caller, in.ListingID, at)
	}
}

// SetRentalTerms sets an asset's price per day.
func (e *Engine) SetRentalTerms(ctx context.Context, caller model.Address, in TermsInput) (model.RentalTerms, error) {
	return run(ctx, e, model.EventTermsSet, caller, in, e.setTerms(caller, in))
}

func (e *Engine) setTerms(caller model.Address, in TermsInput) func(*txn.Tx, time.Time) (model.RentalTerms, error) {
	return func(tx *txn.Tx, at time.Time) (model.RentalTerms, error) {
		return e.esc.SetRentalTermsTx(tx, caller, in.AssetID, in.PricePerDay, at)
	}
}

// BookRental reserves an interval of an asset and escrows the payment.
func (e *Engine) BookRental(ctx context.Context, caller model.Address, in BookInput) (model.Booking, error) {
	return run(ctx, e, model.EventRentalBooked, caller, in, e.book(caller, in))
}

func (e *Engine) book(caller model.Address, in BookInput) func(*txn.Tx, time.Time) (model.Booking, error) {
	return func(tx *txn.Tx, at time.Time) (model.Booking, error) {
		return e.esc.BookRentalTx(tx, caller, in.AssetID, in.CheckIn, in.CheckOut, in.Payment, at)
	}
}

// ActivateRental starts a stay and grants the renter access.
func (e *Engine) ActivateRental(ctx context.Context, caller model.Address, in BookingRef) (model.Booking, error) {
	b, err := run(ctx, e, model.EventRentalActivated, caller, in, e.activate(caller, in))
	if err == nil {
		e.notifyLock(ctx, b)
	}
	return b, err
}

func (e *Engine) activate(caller model.Address, in BookingRef) func(*txn.Tx, time.Time) (model.Booking, error) {
	return func(tx *txn.Tx, at time.Time) (model.Booking, error) {
		return e.esc.ActivateRentalTx(tx, caller, in.BookingID, at)
	}
}

// CompleteRental ends a stay and distributes its escrow.
func (e *Engine) CompleteRental(ctx context.Context, caller model.Address, in BookingRef) (model.Booking, error) {
	b, err := run(ctx, e, model.EventRentalCompleted, caller, in, e.complete(caller, in))
	if err == nil {
		e.notifyLock(ctx, b)
	}
	return b, err
}

func (e *Engine) complete(caller model.Address, in BookingRef) func(*txn.Tx, time.Time) (model.Booking, error) {
	return func(tx *txn.Tx, at time.Time) (model.Booking, error) {
		return e.esc.CompleteRentalTx(tx, caller, in.BookingID, at)
	}
}

// CancelRental cancels a pending booking and refunds the renter.
func (e *Engine) CancelRental(ctx context.Context, caller model.Address, in BookingRef) (model.Booking, error) {
	b, err := run(ctx, e, model.EventRentalCancelled, caller, in, e.cancelRental(caller, in))
	if err == nil {
		e.notifyLock(ctx, b)
	}
	return b, err
}

func (e *Engine) cancelRental(caller model.Address, in BookingRef) func(*txn.Tx, time.Time) (model.Booking, error) {
	return func(tx *txn.Tx, at time.Time) (model.Booking, error) {
		return e.esc.CancelRentalTx(tx, caller, in.BookingID, at)
	}
}

// Withdraw pays out part of caller's credited funds.
func (e *Engine) Withdraw(ctx context.Context, caller model.Address, in WithdrawInput) (Withdrawal, error) {
	return run(ctx, e, model.EventFundsWithdrawn, caller, in, e.withdraw(caller, in))
}

func (e *Engine) withdraw(caller model.Address, in WithdrawInput) func(*txn.Tx, time.Time) (Withdrawal, error) {
	return func(tx *txn.Tx, _ time.Time) (Withdrawal, error) {
		if err := e.tr.WithdrawTx(tx, caller, in.Amount); err != nil {
			return Withdrawal{}, err
		}
		return Withdrawal{Holder: caller, Amount: in.Amount, Remaining: e.tr.Balance(caller)}, nil
	}
}
