package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is a fixed-price offer to sell shares of one asset.  Shares are
// not locked while listed: the seller may move them elsewhere, in which case
// a later purchase fails with an insufficient balance error.
//
// Fields:
//  ID              – sequential listing id, starting at 1.
//  AssetID         – asset whose shares are offered.
//  Seller          – holder that created the listing.
//  Amount          – shares offered at creation.
//  RemainingAmount – shares still for sale.
//  PricePerShare   – price of one share in base units.
//  Active          – false once sold out or cancelled.
type Listing struct {
	ID              uint64          `json:"id"`
	AssetID         uint64          `json:"asset_id"`
	Seller          Address         `json:"seller"`
	Amount          uint64          `json:"amount"`
	RemainingAmount uint64          `json:"remaining_amount"`
	PricePerShare   decimal.Decimal `json:"price_per_share"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Purchase is the outcome of a successful buy from a listing.
type Purchase struct {
	Listing        Listing         `json:"listing"`
	Buyer          Address         `json:"buyer"`
	Amount         uint64          `json:"amount"`
	Payment        decimal.Decimal `json:"payment"`
	PlatformFee    decimal.Decimal `json:"platform_fee"`
	SellerProceeds decimal.Decimal `json:"seller_proceeds"`
}
