package registry

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/smartrent-ledger/internal/model"
	"github.com/iliyamo/smartrent-ledger/internal/txn"
)

// CreateListingTx offers amount of caller's shares at pricePerShare.  The
// shares stay with the seller and are not reserved; a later purchase fails
// if the seller no longer holds enough of them.
func (r *Registry) CreateListingTx(tx *txn.Tx, caller model.Address, assetID, amount uint64, pricePerShare decimal.Decimal, at time.Time) (model.Listing, error) {
	if _, ok := r.assets[assetID]; !ok {
		return model.Listing{}, model.ErrUnknownAsset
	}
	if amount == 0 {
		return model.Listing{}, model.ErrZeroAmount
	}
	if err := model.CheckAmount(pricePerShare); err != nil {
		return model.Listing{}, err
	}
	if r.ledger.BalanceOf(assetID, caller) < amount {
		return model.Listing{}, model.ErrShareBalanceTooLow
	}

	l := &model.Listing{
		ID:              uint64(len(r.listingSeq)) + 1,
		AssetID:         assetID,
		Seller:          caller,
		Amount:          amount,
		RemainingAmount: amount,
		PricePerShare:   pricePerShare,
		Active:          true,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
	r.listings[l.ID] = l
	r.listingSeq = append(r.listingSeq, l.ID)
	r.bySeller[caller] = append(r.bySeller[caller], l.ID)
	tx.OnRollback(func() {
		delete(r.listings, l.ID)
		r.listingSeq = r.listingSeq[:len(r.listingSeq)-1]
		ids := r.bySeller[caller]
		if len(ids) == 1 {
			delete(r.bySeller, caller)
		} else {
			r.bySeller[caller] = ids[:len(ids)-1]
		}
	})
	return *l, nil
}

// BuyFromListingTx executes a purchase of amount shares for exactly
// amount*pricePerShare.  The share transfer, the platform fee and the
// seller's proceeds land together or not at all.
func (r *Registry) BuyFromListingTx(tx *txn.Tx, caller model.Address, listingID, amount uint64, payment decimal.Decimal, at time.Time) (model.Purchase, error) {
	l, ok := r.listings[listingID]
	if !ok {
		return model.Purchase{}, model.ErrUnknownListing
	}
	if !l.Active {
		return model.Purchase{}, model.ErrListingInactive
	}
	if amount == 0 {
		return model.Purchase{}, model.ErrZeroAmount
	}
	if caller == l.Seller {
		return model.Purchase{}, model.ErrSelfPurchase
	}
	if amount > l.RemainingAmount {
		return model.Purchase{}, model.ErrListingExhausted
	}
	if err := model.CheckAmount(payment); err != nil {
		return model.Purchase{}, err
	}
	if !payment.Equal(l.PricePerShare.Mul(model.Units(amount))) {
		return model.Purchase{}, model.ErrPaymentMismatch
	}

	if _, err := r.ledger.TransferTx(tx, l.AssetID, l.Seller, caller, amount); err != nil {
		return model.Purchase{}, err
	}
	fee := model.BpsOf(payment, r.cfg.PlatformFeeBps)
	proceeds := payment.Sub(fee)
	if err := r.funds.CreditTx(tx, r.cfg.FeeRecipient, fee); err != nil {
		return model.Purchase{}, err
	}
	if err := r.funds.CreditTx(tx, l.Seller, proceeds); err != nil {
		return model.Purchase{}, err
	}

	prev := *l
	l.RemainingAmount -= amount
	l.Active = l.RemainingAmount > 0
	l.UpdatedAt = at
	tx.OnRollback(func() { *l = prev })

	return model.Purchase{
		Listing:        *l,
		Buyer:          caller,
		Amount:         amount,
		Payment:        payment,
		PlatformFee:    fee,
		SellerProceeds: proceeds,
	}, nil
}

// CancelListingTx closes an active listing.  Only its seller may do so.
func (r *Registry) CancelListingTx(tx *txn.Tx, caller model.Address, listingID uint64, at time.Time) (model.Listing, error) {
	l, ok := r.listings[listingID]
	if !ok {
		return model.Listing{}, model.ErrUnknownListing
	}
	if caller != l.Seller {
		return model.Listing{}, model.ErrNotSeller
	}
	if !l.Active {
		return model.Listing{}, model.ErrListingInactive
	}
	prev := *l
	l.Active = false
	l.UpdatedAt = at
	tx.OnRollback(func() { *l = prev })
	return *l, nil
}
