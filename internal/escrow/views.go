package escrow

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/smartrent-ledger/internal/model"
)

// Booking returns a booking by id.
func (e *Escrow) Booking(id uint64) (model.Booking, error) {
	b, err := e.lookup(id)
	if err != nil {
		return model.Booking{}, err
	}
	return b.Clone(), nil
}

// BookingsByAsset pages through an asset's bookings in creation order.
func (e *Escrow) BookingsByAsset(assetID uint64, p model.Page) ([]model.Booking, int) {
	ids, total := model.Paginate(e.byAsset[assetID], p)
	return e.collect(ids), total
}

// BookingsByRenter returns every booking made by renter in creation order.
func (e *Escrow) BookingsByRenter(renter model.Address) []model.Booking {
	return e.collect(e.byRenter[renter])
}

// AllBookings pages through every booking in creation order.
func (e *Escrow) AllBookings(p model.Page) ([]model.Booking, int) {
	ids, total := model.Paginate(e.bookingSeq, p)
	return e.collect(ids), total
}

func (e *Escrow) collect(ids []uint64) []model.Booking {
	out := make([]model.Booking, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.bookings[id].Clone())
	}
	return out
}

// BookedRanges returns the intervals held by pending or active bookings.
func (e *Escrow) BookedRanges(assetID uint64) []model.DateRange {
	var out []model.DateRange
	for _, id := range e.byAsset[assetID] {
		b := e.bookings[id]
		if b.Status.Holds() {
			out = append(out, model.DateRange{BookingID: b.ID, CheckIn: b.CheckIn, CheckOut: b.CheckOut})
		}
	}
	return out
}

// DatesAvailable reports whether [checkIn, checkOut) could be booked now.
func (e *Escrow) DatesAvailable(assetID uint64, checkIn, checkOut time.Time) (bool, error) {
	if !checkIn.Before(checkOut) {
		return false, model.ErrInvalidInterval
	}
	if _, err := e.dir.Asset(assetID); err != nil {
		return false, err
	}
	return !e.overlaps(assetID, checkIn, checkOut), nil
}

// Terms returns the rental terms of an asset.
func (e *Escrow) Terms(assetID uint64) (model.RentalTerms, error) {
	t, ok := e.terms[assetID]
	if !ok {
		return model.RentalTerms{}, model.ErrNoRentalTerms
	}
	return t, nil
}

// TotalRentCollected returns the sum of escrow distributed for an asset.
func (e *Escrow) TotalRentCollected(assetID uint64) decimal.Decimal {
	return e.rentCollected[assetID]
}

// RentPayments returns the rent history of an asset.
func (e *Escrow) RentPayments(assetID uint64) []model.RentPayment {
	src := e.rentPayments[assetID]
	out := make([]model.RentPayment, len(src))
	copy(out, src)
	return out
}

// AccessGranted is the lock actuator's question: may holder open the door
// of the booking right now?
func (e *Escrow) AccessGranted(bookingID uint64, holder model.Address) bool {
	b, ok := e.bookings[bookingID]
	return ok && b.Status == model.BookingActive && b.Renter == holder
}

// OpenEscrow sums the escrow of bookings that are still pending or active.
func (e *Escrow) OpenEscrow() decimal.Decimal {
	sum := decimal.Zero
	for _, b := range e.bookings {
		if b.Status.Holds() {
			sum = sum.Add(b.EscrowedAmount)
		}
	}
	return sum
}

// Verify checks the calendar and distribution invariants: no two holding
// bookings of an asset overlap and every distribution adds up to its escrow.
func (e *Escrow) Verify() error {
	for _, ids := range e.byAsset {
		for i, a := range ids {
			ba := e.bookings[a]
			if !ba.Status.Holds() {
				continue
			}
			for _, b := range ids[i+1:] {
				bb := e.bookings[b]
				if bb.Status.Holds() && ba.Overlaps(bb.CheckIn, bb.CheckOut) {
					return model.ErrBookingOverlap
				}
			}
		}
	}
	for _, b := range e.bookings {
		d := b.Distribution
		if d == nil {
			continue
		}
		n := uint64(len(d.Payouts))
		if !d.Total().Equal(b.EscrowedAmount) || (n > 0 && d.Remainder.GreaterThanOrEqual(model.Units(n))) {
			return model.ErrArithmetic
		}
	}
	return nil
}
