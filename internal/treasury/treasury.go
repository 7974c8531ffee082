// Package treasury keeps the pull-payment accounts of the engine: funds owed
// to addresses (sale proceeds, fees, rental payouts, refunds) and the float
// held in escrow for open bookings.
package treasury

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/smartrent-ledger/internal/model"
	"github.com/iliyamo/smartrent-ledger/internal/txn"
)

// Treasury is not safe for concurrent use; the engine serializes access.
type Treasury struct {
	credits  map[model.Address]decimal.Decimal
	escrowed decimal.Decimal
	credited decimal.Decimal
	paidOut  decimal.Decimal
}

// New returns a treasury with no credits and nothing in escrow.
func New() *Treasury {
	return &Treasury{credits: make(map[model.Address]decimal.Decimal)}
}

// CreditTx adds amount to the withdrawable balance of to.  A zero amount is
// accepted and changes nothing.
func (t *Treasury) CreditTx(tx *txn.Tx, to model.Address, amount decimal.Decimal) error {
	if !to.Valid() {
		return model.ErrInvalidAddress
	}
	if err := model.CheckAmount(amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}
	prev, had := t.credits[to]
	prevCredited := t.credited
	t.credits[to] = prev.Add(amount)
	t.credited = t.credited.Add(amount)
	tx.OnRollback(func() {
		if had {
			t.credits[to] = prev
		} else {
			delete(t.credits, to)
		}
		t.credited = prevCredited
	})
	return nil
}

// HoldTx moves amount into the escrow float.
func (t *Treasury) HoldTx(tx *txn.Tx, amount decimal.Decimal) error {
	if err := model.CheckAmount(amount); err != nil {
		return err
	}
	prev := t.escrowed
	t.escrowed = t.escrowed.Add(amount)
	tx.OnRollback(func() { t.escrowed = prev })
	return nil
}

// ReleaseTx takes amount out of the escrow float.  The caller credits it to
// its destination in the same unit of work.
func (t *Treasury) ReleaseTx(tx *txn.Tx, amount decimal.Decimal) error {
	if err := model.CheckAmount(amount); err != nil {
		return err
	}
	if amount.GreaterThan(t.escrowed) {
		return model.ErrArithmetic
	}
	prev := t.escrowed
	t.escrowed = t.escrowed.Sub(amount)
	tx.OnRollback(func() { t.escrowed = prev })
	return nil
}

// WithdrawTx pays out amount of caller's balance.
func (t *Treasury) WithdrawTx(tx *txn.Tx, caller model.Address, amount decimal.Decimal) error {
	if err := model.CheckAmount(amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return model.ErrZeroAmount
	}
	bal := t.credits[caller]
	if amount.GreaterThan(bal) {
		return model.ErrFundsTooLow
	}
	prevPaid := t.paidOut
	if next := bal.Sub(amount); next.IsZero() {
		delete(t.credits, caller)
	} else {
		t.credits[caller] = next
	}
	t.paidOut = t.paidOut.Add(amount)
	tx.OnRollback(func() {
		t.credits[caller] = bal
		t.paidOut = prevPaid
	})
	return nil
}

// Balance returns the withdrawable funds of addr.
func (t *Treasury) Balance(addr model.Address) decimal.Decimal {
	return t.credits[addr]
}

// Escrowed returns the float currently held for open bookings.
func (t *Treasury) Escrowed() decimal.Decimal { return t.escrowed }

// TotalCredited returns everything ever credited to addresses.
func (t *Treasury) TotalCredited() decimal.Decimal { return t.credited }

// TotalWithdrawn returns everything paid out by withdrawals.
func (t *Treasury) TotalWithdrawn() decimal.Decimal { return t.paidOut }

// Outstanding returns the sum of all withdrawable balances.
func (t *Treasury) Outstanding() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range t.credits {
		sum = sum.Add(v)
	}
	return sum
}
