// Package registry indexes assets and their owner sets and runs the
// fixed-price share marketplace.  Owner sets are maintained from the
// ledger's balance change notifications; balances themselves are only ever
// read from the ledger.
package registry

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/smartrent-ledger/internal/model"
	"github.com/iliyamo/smartrent-ledger/internal/txn"
)

// ShareLedger is the part of the ledger the registry calls.
type ShareLedger interface {
	TransferTx(tx *txn.Tx, assetID uint64, from, to model.Address, amount uint64) (model.BalanceChange, error)
	BalanceOf(assetID uint64, holder model.Address) uint64
}

// Funds receives sale proceeds and platform fees.
type Funds interface {
	CreditTx(tx *txn.Tx, to model.Address, amount decimal.Decimal) error
}

// Config holds the marketplace fee policy.
type Config struct {
	PlatformFeeBps uint32
	FeeRecipient   model.Address
}

// Validate checks the fee policy.
func (c Config) Validate() error {
	if c.PlatformFeeBps > model.BpsDenominator {
		return model.ErrInvalidBps
	}
	if !c.FeeRecipient.Valid() {
		return fmt.Errorf("fee recipient: %w", model.ErrInvalidAddress)
	}
	return nil
}

// Registry is not safe for concurrent use; the engine serializes access.
type Registry struct {
	cfg    Config
	ledger ShareLedger
	funds  Funds

	assetSeq []uint64
	assets   map[uint64]model.Asset
	owners   map[uint64]*ownerSet

	listingSeq []uint64
	listings   map[uint64]*model.Listing
	bySeller   map[model.Address][]uint64
}

// New returns an empty registry.  The ledger handle is attached with Bind
// once the ledger has been built with this registry as its registrar.
func New(cfg Config, funds Funds) *Registry {
	return &Registry{
		cfg:      cfg,
		funds:    funds,
		assets:   make(map[uint64]model.Asset),
		owners:   make(map[uint64]*ownerSet),
		listings: make(map[uint64]*model.Listing),
		bySeller: make(map[model.Address][]uint64),
	}
}

// Bind attaches the share ledger used to execute sales and read balances.
func (r *Registry) Bind(l ShareLedger) { r.ledger = l }

// Config returns the fee policy in force.
func (r *Registry) Config() Config { return r.cfg }

// RegisterAssetTx adds an asset to the index.  A second registration of the
// same id is a state conflict and changes nothing.
func (r *Registry) RegisterAssetTx(tx *txn.Tx, assetID, totalShares uint64, metadataPointer string, at time.Time) error {
	if _, ok := r.assets[assetID]; ok {
		return model.ErrAssetRegistered
	}
	if totalShares == 0 {
		return model.ErrZeroShares
	}
	r.assets[assetID] = model.Asset{
		ID:              assetID,
		TotalShares:     totalShares,
		MetadataPointer: metadataPointer,
		CreatedAt:       at,
		Exists:          true,
	}
	r.owners[assetID] = newOwnerSet()
	r.assetSeq = append(r.assetSeq, assetID)
	tx.OnRollback(func() {
		delete(r.assets, assetID)
		delete(r.owners, assetID)
		r.assetSeq = r.assetSeq[:len(r.assetSeq)-1]
	})
	return nil
}

// OnOwnershipChangedTx keeps the owner set in step with a balance change:
// the receiver joins when its balance became positive and the sender leaves
// when its balance reached zero.
func (r *Registry) OnOwnershipChangedTx(tx *txn.Tx, change model.BalanceChange) error {
	set, ok := r.owners[change.AssetID]
	if !ok {
		return model.ErrUnknownAsset
	}
	if change.From == change.To {
		return nil
	}
	if change.ToBefore == 0 && change.ToAfter > 0 {
		tx.OnRollback(set.add(change.To))
	}
	if change.From != "" && change.FromBefore > 0 && change.FromAfter == 0 {
		tx.OnRollback(set.remove(change.From))
	}
	return nil
}
