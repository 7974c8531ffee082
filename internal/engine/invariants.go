package engine

import (
	"errors"
	"fmt"
	"sort"
)

// CheckInvariants verifies the engine's cross-component invariants and
// returns every violation found.
func (e *Engine) CheckInvariants() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var errs []error
	ids := e.led.AssetIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) != e.reg.AssetCount() {
		errs = append(errs, fmt.Errorf("ledger has %d assets, registry %d", len(ids), e.reg.AssetCount()))
	}
	for _, id := range ids {
		a := e.led.Asset(id)
		if supply := e.led.TotalSupply(id); supply != a.TotalShares {
			errs = append(errs, fmt.Errorf("asset %d: supply %d != total shares %d", id, supply, a.TotalShares))
		}
		if !e.reg.OwnerSetConsistent(id, e.led.Holders(id)) {
			errs = append(errs, fmt.Errorf("asset %d: owner set out of step with balances", id))
		}
	}
	if err := e.esc.Verify(); err != nil {
		errs = append(errs, fmt.Errorf("escrow: %w", err))
	}
	if held, open := e.tr.Escrowed(), e.esc.OpenEscrow(); !held.Equal(open) {
		errs = append(errs, fmt.Errorf("treasury holds %s in escrow, open bookings %s", held, open))
	}
	if owed := e.tr.TotalCredited().Sub(e.tr.TotalWithdrawn()); !owed.Equal(e.tr.Outstanding()) {
		errs = append(errs, fmt.Errorf("treasury owes %s, balances sum to %s", owed, e.tr.Outstanding()))
	}
	return errors.Join(errs...)
}
