package model

import "time"

// Asset is a rentable property split into a fixed number of fungible
// shares.  It is created once by a mint and never changes afterwards; only
// the distribution of its shares moves.
//
// Fields:
//  ID              – token id chosen by the minter.
//  TotalShares     – number of shares, fixed at mint, always > 0.
//  MetadataPointer – opaque content reference resolved by an external store.
//  CreatedAt       – mint time.
//  Exists          – false for the zero value returned by lookups that miss.
type Asset struct {
	ID              uint64    `json:"id"`
	TotalShares     uint64    `json:"total_shares"`
	MetadataPointer string    `json:"metadata_pointer"`
	CreatedAt       time.Time `json:"created_at"`
	Exists          bool      `json:"exists"`
}

// Holding is one member of an asset's owner set together with its balance
// and its ownership expressed in basis points (floored).
type Holding struct {
	Holder  Address `json:"holder"`
	Balance uint64  `json:"balance"`
	Bps     uint32  `json:"bps"`
}

// AssetBalance is an asset seen from a holder's side.
type AssetBalance struct {
	Asset   Asset  `json:"asset"`
	Balance uint64 `json:"balance"`
	Bps     uint32 `json:"bps"`
}

// BalanceChange describes one completed share movement.  It carries the
// balances of both sides before and after the move so that the owner set
// can be maintained without rescanning balances.
type BalanceChange struct {
	AssetID    uint64  `json:"asset_id"`
	From       Address `json:"from,omitempty"` // empty for a mint
	To         Address `json:"to"`
	Amount     uint64  `json:"amount"`
	FromBefore uint64  `json:"from_before"`
	FromAfter  uint64  `json:"from_after"`
	ToBefore   uint64  `json:"to_before"`
	ToAfter    uint64  `json:"to_after"`
}

// BpsOfShares returns balance*10000/total floored.  total is never zero for
// an existing asset.
func BpsOfShares(balance, total uint64) uint32 {
	if total == 0 {
		return 0
	}
	return uint32(MulDivFloorShares(balance, BpsDenominator, total))
}

// MulDivFloorShares computes floor(a*b/c) for share counts without
// overflowing 64 bits.
func MulDivFloorShares(a, b, c uint64) uint64 {
	q := MulDivFloor(decimalFromUint(a), b, c)
	return q.BigInt().Uint64()
}
