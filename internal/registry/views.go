package registry

import (
	"sort"

	"github.com/iliyamo/smartrent-ledger/internal/model"
)

// Asset returns the registered asset record.
func (r *Registry) Asset(assetID uint64) (model.Asset, error) {
	a, ok := r.assets[assetID]
	if !ok {
		return model.Asset{}, model.ErrUnknownAsset
	}
	return a, nil
}

// AllAssets pages through registered assets in registration order.
func (r *Registry) AllAssets(p model.Page) ([]model.Asset, int) {
	ids, total := model.Paginate(r.assetSeq, p)
	out := make([]model.Asset, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.assets[id])
	}
	return out, total
}

// AssetCount returns the number of registered assets.
func (r *Registry) AssetCount() int { return len(r.assetSeq) }

// AssetOwners pages through the owner set of an asset in set order.
func (r *Registry) AssetOwners(assetID uint64, p model.Page) ([]model.Holding, int, error) {
	set, ok := r.owners[assetID]
	if !ok {
		return nil, 0, model.ErrUnknownAsset
	}
	addrs, total := model.Paginate(set.list, p)
	return r.holdings(assetID, addrs), total, nil
}

// Holdings returns every owner of assetID with balance and basis points,
// sorted by address.  This is the order income is distributed in.
func (r *Registry) Holdings(assetID uint64) ([]model.Holding, error) {
	set, ok := r.owners[assetID]
	if !ok {
		return nil, model.ErrUnknownAsset
	}
	addrs := set.members()
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
	return r.holdings(assetID, addrs), nil
}

func (r *Registry) holdings(assetID uint64, addrs []model.Address) []model.Holding {
	total := r.assets[assetID].TotalShares
	out := make([]model.Holding, 0, len(addrs))
	for _, a := range addrs {
		bal := r.ledger.BalanceOf(assetID, a)
		out = append(out, model.Holding{Holder: a, Balance: bal, Bps: model.BpsOfShares(bal, total)})
	}
	return out
}

// OwnershipBps returns holder's share of assetID in basis points, floored.
func (r *Registry) OwnershipBps(assetID uint64, holder model.Address) (uint32, error) {
	a, ok := r.assets[assetID]
	if !ok {
		return 0, model.ErrUnknownAsset
	}
	return model.BpsOfShares(r.ledger.BalanceOf(assetID, holder), a.TotalShares), nil
}

// AssetsByOwner lists the assets holder has a positive balance in, in
// registration order.
func (r *Registry) AssetsByOwner(holder model.Address) []model.AssetBalance {
	var out []model.AssetBalance
	for _, id := range r.assetSeq {
		if !r.owners[id].has(holder) {
			continue
		}
		a := r.assets[id]
		bal := r.ledger.BalanceOf(id, holder)
		out = append(out, model.AssetBalance{Asset: a, Balance: bal, Bps: model.BpsOfShares(bal, a.TotalShares)})
	}
	return out
}

// TopShareholder scans the owner set for the largest balance.  Ties go to
// the lowest address.  The answer is computed on every call.
func (r *Registry) TopShareholder(assetID uint64) (model.Holding, error) {
	set, ok := r.owners[assetID]
	if !ok {
		return model.Holding{}, model.ErrUnknownAsset
	}
	var top model.Holding
	for _, a := range set.list {
		bal := r.ledger.BalanceOf(assetID, a)
		if bal > top.Balance || (bal == top.Balance && bal > 0 && a.Less(top.Holder)) {
			top = model.Holding{Holder: a, Balance: bal}
		}
	}
	top.Bps = model.BpsOfShares(top.Balance, r.assets[assetID].TotalShares)
	return top, nil
}

// IsTopShareholder reports whether holder currently is the top shareholder.
func (r *Registry) IsTopShareholder(assetID uint64, holder model.Address) bool {
	top, err := r.TopShareholder(assetID)
	return err == nil && top.Holder != "" && top.Holder == holder
}

// Listing returns a listing by id.
func (r *Registry) Listing(id uint64) (model.Listing, error) {
	l, ok := r.listings[id]
	if !ok {
		return model.Listing{}, model.ErrUnknownListing
	}
	return *l, nil
}

// ActiveListings pages through active listings in creation order.
func (r *Registry) ActiveListings(p model.Page) ([]model.Listing, int) {
	var active []model.Listing
	for _, id := range r.listingSeq {
		if l := r.listings[id]; l.Active {
			active = append(active, *l)
		}
	}
	return model.Paginate(active, p)
}

// ListingsBySeller returns every listing ever created by seller, active or
// not, in creation order.
func (r *Registry) ListingsBySeller(seller model.Address) []model.Listing {
	ids := r.bySeller[seller]
	out := make([]model.Listing, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.listings[id])
	}
	return out
}

// ListingCount returns the number of listings ever created.
func (r *Registry) ListingCount() int { return len(r.listingSeq) }

// OwnerSetConsistent verifies the owner set of assetID against the ledger:
// every member holds shares, the index matches the list, and the set size
// equals holders.
func (r *Registry) OwnerSetConsistent(assetID uint64, holders int) bool {
	set, ok := r.owners[assetID]
	if !ok || !set.consistent() || set.len() != holders {
		return false
	}
	for _, a := range set.list {
		if r.ledger.BalanceOf(assetID, a) == 0 {
			return false
		}
	}
	return true
}
