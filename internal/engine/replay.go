package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iliyamo/smartrent-ledger/internal/model"
	"github.com/iliyamo/smartrent-ledger/internal/txn"
)

// Replay re-applies journaled events in order.  Events are neither
// journaled again nor published.  Each event must carry the next sequence
// number; an event that fails to apply stops the replay with that event's
// state rolled back and everything before it kept.
func (e *Engine) Replay(ctx context.Context, events []model.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ev.Seq <= e.seq {
			return fmt.Errorf("event %d: %w", ev.Seq, model.ErrDuplicateEventSeq)
		}
		if ev.Seq != e.seq+1 {
			return fmt.Errorf("event %d: journal gap after %d", ev.Seq, e.seq)
		}
		tx := txn.Begin()
		if err := e.apply(tx, ev); err != nil {
			tx.Rollback()
			return fmt.Errorf("replay event %d (%s): %w", ev.Seq, ev.Kind, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		e.seq = ev.Seq
	}
	e.log.Info().Int("events", len(events)).Uint64("seq", e.seq).Msg("journal replayed")
	return nil
}

func (e *Engine) apply(tx *txn.Tx, ev model.Event) error {
	var p struct {
		Input json.RawMessage `json:"input"`
	}
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	c, at := ev.Caller, ev.At

	switch ev.Kind {
	case model.EventAssetMinted:
		return replayInput(tx, p.Input, at, e.mint)
	case model.EventSharesTransferred:
		return replayInput(tx, p.Input, at, func(in TransferInput) func(*txn.Tx, time.Time) (model.BalanceChange, error) {
			return e.transfer(c, in)
		})
	case model.EventListingCreated:
		return replayInput(tx, p.Input, at, func(in CreateListingInput) func(*txn.Tx, time.Time) (model.Listing, error) {
			return e.createListing(c, in)
		})
	case model.EventListingPurchased:
		return replayInput(tx, p.Input, at, func(in BuyInput) func(*txn.Tx, time.Time) (model.Purchase, error) {
			return e.buy(c, in)
		})
	case model.EventListingCancelled:
		return replayInput(tx, p.Input, at, func(in ListingRef) func(*txn.Tx, time.Time) (model.Listing, error) {
			return e.cancelListing(c, in)
		})
	case model.EventTermsSet:
		return replayInput(tx, p.Input, at, func(in TermsInput) func(*txn.Tx, time.Time) (model.RentalTerms, error) {
			return e.setTerms(c, in)
		})
	case model.EventRentalBooked:
		return replayInput(tx, p.Input, at, func(in BookInput) func(*txn.Tx, time.Time) (model.Booking, error) {
			return e.book(c, in)
		})
	case model.EventRentalActivated:
		return replayInput(tx, p.Input, at, func(in BookingRef) func(*txn.Tx, time.Time) (model.Booking, error) {
			return e.activate(c, in)
		})
	case model.EventRentalCompleted:
		return replayInput(tx, p.Input, at, func(in BookingRef) func(*txn.Tx, time.Time) (model.Booking, error) {
			return e.complete(c, in)
		})
	case model.EventRentalCancelled:
		return replayInput(tx, p.Input, at, func(in BookingRef) func(*txn.Tx, time.Time) (model.Booking, error) {
			return e.cancelRental(c, in)
		})
	case model.EventFundsWithdrawn:
		return replayInput(tx, p.Input, at, func(in WithdrawInput) func(*txn.Tx, time.Time) (Withdrawal, error) {
			return e.withdraw(c, in)
		})
	}
	return model.ErrUnknownEventKind
}

func replayInput[I, R any](tx *txn.Tx, raw json.RawMessage, at time.Time, build func(I) func(*txn.Tx, time.Time) (R, error)) error {
	var in I
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	_, err := build(in)(tx, at)
	return err
}
