// Package ledger is the authoritative share accounting of the engine: one
// fungible balance table per asset.  Every mint and every balance change is
// reported to the Registrar inside the same unit of work, so a failing hook
// undoes the ledger mutation as well.
package ledger

import (
	"time"

	"github.com/iliyamo/smartrent-ledger/internal/model"
	"github.com/iliyamo/smartrent-ledger/internal/txn"
)

// Registrar is the part of the registry the ledger notifies.
type Registrar interface {
	RegisterAssetTx(tx *txn.Tx, assetID, totalShares uint64, metadataPointer string, at time.Time) error
	OnOwnershipChangedTx(tx *txn.Tx, change model.BalanceChange) error
}

// Ledger is not safe for concurrent use; the engine serializes access.
type Ledger struct {
	reg      Registrar
	assets   map[uint64]model.Asset
	balances map[uint64]map[model.Address]uint64
}

// New returns an empty ledger that reports to reg.
func New(reg Registrar) *Ledger {
	return &Ledger{
		reg:      reg,
		assets:   make(map[uint64]model.Asset),
		balances: make(map[uint64]map[model.Address]uint64),
	}
}

// MintTx creates assetID with totalShares, all held by holder, and registers
// it.  Either everything happens or, on error, nothing does.
func (l *Ledger) MintTx(tx *txn.Tx, assetID, totalShares uint64, holder model.Address, metadataPointer string, at time.Time) (model.Asset, error) {
	if _, ok := l.assets[assetID]; ok {
		return model.Asset{}, model.ErrAssetExists
	}
	if totalShares == 0 {
		return model.Asset{}, model.ErrZeroShares
	}
	if !holder.Valid() {
		return model.Asset{}, model.ErrInvalidAddress
	}

	asset := model.Asset{
		ID:              assetID,
		TotalShares:     totalShares,
		MetadataPointer: metadataPointer,
		CreatedAt:       at,
		Exists:          true,
	}
	l.assets[assetID] = asset
	l.balances[assetID] = map[model.Address]uint64{holder: totalShares}
	tx.OnRollback(func() {
		delete(l.assets, assetID)
		delete(l.balances, assetID)
	})

	if err := l.reg.RegisterAssetTx(tx, assetID, totalShares, metadataPointer, at); err != nil {
		return model.Asset{}, err
	}
	err := l.reg.OnOwnershipChangedTx(tx, model.BalanceChange{
		AssetID: assetID,
		To:      holder,
		Amount:  totalShares,
		ToAfter: totalShares,
	})
	if err != nil {
		return model.Asset{}, err
	}
	return asset, nil
}

// TransferFromTx moves amount shares on behalf of caller, who must own them.
func (l *Ledger) TransferFromTx(tx *txn.Tx, caller model.Address, assetID uint64, from, to model.Address, amount uint64) (model.BalanceChange, error) {
	if caller != from {
		return model.BalanceChange{}, model.ErrNotHolder
	}
	return l.TransferTx(tx, assetID, from, to, amount)
}

// TransferTx moves amount shares from one holder to another and notifies the
// registrar.  A self-transfer is validated but changes nothing.
func (l *Ledger) TransferTx(tx *txn.Tx, assetID uint64, from, to model.Address, amount uint64) (model.BalanceChange, error) {
	if amount == 0 {
		return model.BalanceChange{}, model.ErrZeroAmount
	}
	book, ok := l.balances[assetID]
	if !ok {
		return model.BalanceChange{}, model.ErrUnknownAsset
	}
	if !from.Valid() || !to.Valid() {
		return model.BalanceChange{}, model.ErrInvalidAddress
	}
	fromBal := book[from]
	if fromBal < amount {
		return model.BalanceChange{}, model.ErrShareBalanceTooLow
	}
	if from == to {
		return model.BalanceChange{
			AssetID: assetID, From: from, To: to, Amount: amount,
			FromBefore: fromBal, FromAfter: fromBal, ToBefore: fromBal, ToAfter: fromBal,
		}, nil
	}

	toBal := book[to]
	if toBal+amount < toBal {
		return model.BalanceChange{}, model.ErrOverflow
	}
	change := model.BalanceChange{
		AssetID:    assetID,
		From:       from,
		To:         to,
		Amount:     amount,
		FromBefore: fromBal,
		FromAfter:  fromBal - amount,
		ToBefore:   toBal,
		ToAfter:    toBal + amount,
	}
	setBalance(book, from, change.FromAfter)
	setBalance(book, to, change.ToAfter)
	tx.OnRollback(func() {
		setBalance(book, from, fromBal)
		setBalance(book, to, toBal)
	})

	if err := l.reg.OnOwnershipChangedTx(tx, change); err != nil {
		return model.BalanceChange{}, err
	}
	return change, nil
}

func setBalance(book map[model.Address]uint64, holder model.Address, v uint64) {
	if v == 0 {
		delete(book, holder)
		return
	}
	book[holder] = v
}

// BalanceOf returns holder's shares of assetID, 0 when unknown.
func (l *Ledger) BalanceOf(assetID uint64, holder model.Address) uint64 {
	return l.balances[assetID][holder]
}

// Asset returns the asset record; Exists is false when it was never minted.
func (l *Ledger) Asset(assetID uint64) model.Asset {
	return l.assets[assetID]
}

// TotalSupply sums every balance of assetID.  It equals TotalShares unless
// the ledger is corrupt.
func (l *Ledger) TotalSupply(assetID uint64) uint64 {
	var sum uint64
	for _, v := range l.balances[assetID] {
		sum += v
	}
	return sum
}

// Holders returns the number of non-zero balances of assetID.
func (l *Ledger) Holders(assetID uint64) int { return len(l.balances[assetID]) }

// AssetIDs returns every minted asset id in no particular order.
func (l *Ledger) AssetIDs() []uint64 {
	ids := make([]uint64, 0, len(l.assets))
	for id := range l.assets {
		ids = append(ids, id)
	}
	return ids
}
