// Package escrow runs the per-asset booking calendar: it holds rental
// payments from booking until the stay completes or is cancelled and then
// distributes them to shareholders or refunds the renter.
package escrow

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/smartrent-ledger/internal/model"
	"github.com/iliyamo/smartrent-ledger/internal/txn"
)

// OwnerDirectory is the part of the registry the escrow reads.
type OwnerDirectory interface {
	Asset(assetID uint64) (model.Asset, error)
	Holdings(assetID uint64) ([]model.Holding, error)
	IsTopShareholder(assetID uint64, holder model.Address) bool
}

// Funds holds the escrow float and receives payouts and refunds.
type Funds interface {
	CreditTx(tx *txn.Tx, to model.Address, amount decimal.Decimal) error
	HoldTx(tx *txn.Tx, amount decimal.Decimal) error
	ReleaseTx(tx *txn.Tx, amount decimal.Decimal) error
}

// Config is the rental policy.
type Config struct {
	CancellationFeeBps uint32
	FeeRecipient       model.Address
	Basis              model.IncomeBasis
}

// Validate checks the rental policy.
func (c Config) Validate() error {
	if c.CancellationFeeBps > model.BpsDenominator {
		return model.ErrInvalidBps
	}
	if !c.FeeRecipient.Valid() {
		return fmt.Errorf("fee recipient: %w", model.ErrInvalidAddress)
	}
	if !c.Basis.Valid() {
		return fmt.Errorf("income basis %q: %w", c.Basis, model.ErrValidation)
	}
	return nil
}

// Escrow is not safe for concurrent use; the engine serializes access.
type Escrow struct {
	cfg   Config
	dir   OwnerDirectory
	funds Funds

	terms map[uint64]model.RentalTerms

	bookingSeq []uint64
	bookings   map[uint64]*model.Booking
	byAsset    map[uint64][]uint64
	byRenter   map[model.Address][]uint64

	rentCollected map[uint64]decimal.Decimal
	rentPayments  map[uint64][]model.RentPayment
}

// New builds an empty escrow.  An empty cfg.Basis means completion.
func New(cfg Config, dir OwnerDirectory, funds Funds) *Escrow {
	if cfg.Basis == "" {
		cfg.Basis = model.IncomeAtCompletion
	}
	return &Escrow{
		cfg:           cfg,
		dir:           dir,
		funds:         funds,
		terms:         make(map[uint64]model.RentalTerms),
		bookings:      make(map[uint64]*model.Booking),
		byAsset:       make(map[uint64][]uint64),
		byRenter:      make(map[model.Address][]uint64),
		rentCollected: make(map[uint64]decimal.Decimal),
		rentPayments:  make(map[uint64][]model.RentPayment),
	}
}

// Config returns the rental policy in force.
func (e *Escrow) Config() Config { return e.cfg }

// SetRentalTermsTx sets the nightly price of an asset.  Only the asset's
// top shareholder at call time may do this.
func (e *Escrow) SetRentalTermsTx(tx *txn.Tx, caller model.Address, assetID uint64, pricePerDay decimal.Decimal, at time.Time) (model.RentalTerms, error) {
	if _, err := e.dir.Asset(assetID); err != nil {
		return model.RentalTerms{}, err
	}
	if !e.dir.IsTopShareholder(assetID, caller) {
		return model.RentalTerms{}, model.ErrNotTopShareholder
	}
	if err := model.CheckAmount(pricePerDay); err != nil {
		return model.RentalTerms{}, err
	}
	if pricePerDay.IsZero() {
		return model.RentalTerms{}, model.ErrZeroAmount
	}

	prev, had := e.terms[assetID]
	t := model.RentalTerms{AssetID: assetID, PricePerDay: pricePerDay, SetBy: caller, UpdatedAt: at}
	e.terms[assetID] = t
	tx.OnRollback(func() {
		if had {
			e.terms[assetID] = prev
		} else {
			delete(e.terms, assetID)
		}
	})
	return t, nil
}

// StayDays returns the number of whole days in [checkIn, checkOut).
func StayDays(checkIn, checkOut time.Time) (uint64, error) {
	if !checkIn.Before(checkOut) {
		return 0, model.ErrInvalidInterval
	}
	days := uint64(checkOut.Sub(checkIn) / (24 * time.Hour))
	if days == 0 {
		return 0, model.ErrStayTooShort
	}
	return days, nil
}
