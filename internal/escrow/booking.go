package escrow

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/smartrent-ledger/internal/model"
	"github.com/iliyamo/smartrent-ledger/internal/txn"
)

// BookRentalTx reserves [checkIn, checkOut) for caller and escrows the total
// price.  Any payment above the total price is credited back to caller.
func (e *Escrow) BookRentalTx(tx *txn.Tx, caller model.Address, assetID uint64, checkIn, checkOut time.Time, payment decimal.Decimal, at time.Time) (model.Booking, error) {
	days, err := StayDays(checkIn, checkOut)
	if err != nil {
		return model.Booking{}, err
	}
	if _, err := e.dir.Asset(assetID); err != nil {
		return model.Booking{}, err
	}
	terms, ok := e.terms[assetID]
	if !ok {
		return model.Booking{}, model.ErrNoRentalTerms
	}
	if e.overlaps(assetID, checkIn, checkOut) {
		return model.Booking{}, model.ErrBookingOverlap
	}
	if err := model.CheckAmount(payment); err != nil {
		return model.Booking{}, err
	}
	total := terms.PricePerDay.Mul(model.Units(days))
	if payment.LessThan(total) {
		return model.Booking{}, model.ErrPaymentTooLow
	}

	if err := e.funds.HoldTx(tx, total); err != nil {
		return model.Booking{}, err
	}
	if over := payment.Sub(total); over.IsPositive() {
		if err := e.funds.CreditTx(tx, caller, over); err != nil {
			return model.Booking{}, err
		}
	}

	b := &model.Booking{
		ID:              uint64(len(e.bookingSeq)) + 1,
		AssetID:         assetID,
		Renter:          caller,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Days:            days,
		TotalPrice:      total,
		EscrowedAmount:  total,
		Status:          model.BookingPending,
		CreatedAt:       at,
		UpdatedAt:       at,
		Refund:          decimal.Zero,
		CancellationFee: decimal.Zero,
	}
	if e.cfg.Basis == model.IncomeAtBooking {
		owners, err := e.dir.Holdings(assetID)
		if err != nil {
			return model.Booking{}, err
		}
		b.OwnersAtBooking = owners
	}

	e.bookings[b.ID] = b
	e.bookingSeq = append(e.bookingSeq, b.ID)
	e.byAsset[assetID] = append(e.byAsset[assetID], b.ID)
	e.byRenter[caller] = append(e.byRenter[caller], b.ID)
	tx.OnRollback(func() {
		delete(e.bookings, b.ID)
		e.bookingSeq = e.bookingSeq[:len(e.bookingSeq)-1]
		e.byAsset[assetID] = popID(e.byAsset[assetID])
		e.byRenter[caller] = popID(e.byRenter[caller])
	})
	return b.Clone(), nil
}

func popID(ids []uint64) []uint64 {
	if len(ids) <= 1 {
		return nil
	}
	return ids[:len(ids)-1]
}

func (e *Escrow) overlaps(assetID uint64, checkIn, checkOut time.Time) bool {
	for _, id := range e.byAsset[assetID] {
		b := e.bookings[id]
		if b.Status.Holds() && b.Overlaps(checkIn, checkOut) {
			return true
		}
	}
	return false
}

// authorizeManager lets the renter or the asset's current top shareholder
// drive a booking forward.
func (e *Escrow) authorizeManager(b *model.Booking, caller model.Address) error {
	if caller == b.Renter || e.dir.IsTopShareholder(b.AssetID, caller) {
		return nil
	}
	return model.ErrNotRenterOrManager
}

func (e *Escrow) lookup(id uint64) (*model.Booking, error) {
	b, ok := e.bookings[id]
	if !ok {
		return nil, model.ErrUnknownBooking
	}
	return b, nil
}

// transition moves b to next and registers the undo.
func (e *Escrow) transition(tx *txn.Tx, b *model.Booking, next model.BookingStatus, at time.Time) error {
	if !b.Status.CanTransition(next) {
		return model.ErrInvalidTransition
	}
	prev := *b
	b.Status = next
	b.UpdatedAt = at
	tx.OnRollback(func() { *b = prev })
	return nil
}

// ActivateRentalTx moves a pending booking to active.  Activation is what
// the lock actuator waits for before admitting the renter.
func (e *Escrow) ActivateRentalTx(tx *txn.Tx, caller model.Address, id uint64, at time.Time) (model.Booking, error) {
	b, err := e.lookup(id)
	if err != nil {
		return model.Booking{}, err
	}
	if err := e.authorizeManager(b, caller); err != nil {
		return model.Booking{}, err
	}
	if err := e.transition(tx, b, model.BookingActive, at); err != nil {
		return model.Booking{}, err
	}
	return b.Clone(), nil
}

// CompleteRentalTx closes an active booking and distributes its escrow to
// the shareholders selected by the income basis.
func (e *Escrow) CompleteRentalTx(tx *txn.Tx, caller model.Address, id uint64, at time.Time) (model.Booking, error) {
	b, err := e.lookup(id)
	if err != nil {
		return model.Booking{}, err
	}
	if err := e.authorizeManager(b, caller); err != nil {
		return model.Booking{}, err
	}
	if err := e.transition(tx, b, model.BookingCompleted, at); err != nil {
		return model.Booking{}, err
	}

	asset, err := e.dir.Asset(b.AssetID)
	if err != nil {
		return model.Booking{}, err
	}
	owners := b.OwnersAtBooking
	if e.cfg.Basis == model.IncomeAtCompletion || owners == nil {
		if owners, err = e.dir.Holdings(b.AssetID); err != nil {
			return model.Booking{}, err
		}
	}
	dist := Distribute(b.ID, b.EscrowedAmount, asset.TotalShares, owners, e.cfg.FeeRecipient)
	dist.Basis = e.cfg.Basis

	if err := e.funds.ReleaseTx(tx, b.EscrowedAmount); err != nil {
		return model.Booking{}, err
	}
	for _, p := range dist.Payouts {
		if err := e.funds.CreditTx(tx, p.Holder, p.Amount); err != nil {
			return model.Booking{}, err
		}
	}
	if err := e.funds.CreditTx(tx, dist.RemainderTo, dist.Remainder); err != nil {
		return model.Booking{}, err
	}
	b.Distribution = &dist

	prevCollected := e.rentCollected[b.AssetID]
	prevPayments := e.rentPayments[b.AssetID]
	e.rentCollected[b.AssetID] = prevCollected.Add(b.EscrowedAmount)
	e.rentPayments[b.AssetID] = append(prevPayments, model.RentPayment{
		BookingID: b.ID,
		Renter:    b.Renter,
		Amount:    b.EscrowedAmount,
		PaidAt:    at,
	})
	tx.OnRollback(func() {
		e.rentCollected[b.AssetID] = prevCollected
		e.rentPayments[b.AssetID] = prevPayments
	})
	return b.Clone(), nil
}

// CancelRentalTx cancels a pending booking.  The renter gets the escrow back
// minus the cancellation fee, which goes to the fee recipient.
func (e *Escrow) CancelRentalTx(tx *txn.Tx, caller model.Address, id uint64, at time.Time) (model.Booking, error) {
	b, err := e.lookup(id)
	if err != nil {
		return model.Booking{}, err
	}
	if caller != b.Renter {
		return model.Booking{}, model.ErrNotRenter
	}
	if err := e.transition(tx, b, model.BookingCancelled, at); err != nil {
		return model.Booking{}, err
	}

	fee := model.BpsOf(b.EscrowedAmount, e.cfg.CancellationFeeBps)
	refund := b.EscrowedAmount.Sub(fee)
	if err := e.funds.ReleaseTx(tx, b.EscrowedAmount); err != nil {
		return model.Booking{}, err
	}
	if err := e.funds.CreditTx(tx, b.Renter, refund); err != nil {
		return model.Booking{}, err
	}
	if err := e.funds.CreditTx(tx, e.cfg.FeeRecipient, fee); err != nil {
		return model.Booking{}, err
	}
	b.Refund = refund
	b.CancellationFee = fee
	return b.Clone(), nil
}

// Distribute splits escrowed across owners in the given order:
// payout_i = floor(escrowed * balance_i / totalShares).  What the floors
// leave behind, always fewer units than there are owners, goes to
// remainderTo.
func Distribute(bookingID uint64, escrowed decimal.Decimal, totalShares uint64, owners []model.Holding, remainderTo model.Address) model.Distribution {
	d := model.Distribution{
		BookingID:   bookingID,
		Escrowed:    escrowed,
		TotalShares: totalShares,
		Payouts:     make([]model.Payout, 0, len(owners)),
		RemainderTo: remainderTo,
	}
	paid := decimal.Zero
	for _, o := range owners {
		amt := model.MulDivFloor(escrowed, o.Balance, totalShares)
		d.Payouts = append(d.Payouts, model.Payout{Holder: o.Holder, Shares: o.Balance, Amount: amt})
		paid = paid.Add(amt)
	}
	d.Remainder = escrowed.Sub(paid)
	return d
}
