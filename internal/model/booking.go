package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a rental booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingActive    BookingStatus = "ACTIVE"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Holds reports whether a booking in this status still occupies the
// calendar.
func (s BookingStatus) Holds() bool { return s == BookingPending || s == BookingActive }

// Terminal reports whether no further transition is allowed.
func (s BookingStatus) Terminal() bool { return s == BookingCompleted || s == BookingCancelled }

// CanTransition reports whether the state machine permits s → next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	switch s {
	case BookingPending:
		return next == BookingActive || next == BookingCancelled
	case BookingActive:
		return next == BookingCompleted
	}
	return false
}

// IncomeBasis selects which ownership snapshot a completed booking is
// distributed against.
type IncomeBasis string

const (
	// IncomeAtCompletion reads owners and balances when the booking
	// completes.  A holder who sold after the booking was made receives
	// nothing; a buyer who joined just before completion receives a share.
	IncomeAtCompletion IncomeBasis = "completion"
	// IncomeAtBooking distributes against the owners recorded when the
	// booking was created.
	IncomeAtBooking IncomeBasis = "booking"
)

// Valid reports whether b names a known policy.
func (b IncomeBasis) Valid() bool { return b == IncomeAtCompletion || b == IncomeAtBooking }

// RentalTerms holds the nightly price set by an asset's top shareholder.
type RentalTerms struct {
	AssetID     uint64          `json:"asset_id"`
	PricePerDay decimal.Decimal `json:"price_per_day"`
	SetBy       Address         `json:"set_by"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Booking is a reservation of an asset for the half-open interval
// [CheckIn, CheckOut).  The escrowed amount is held by the engine until the
// booking completes (distribution) or is cancelled (refund).
//
// Fields:
//  ID              – sequential booking id, starting at 1.
//  AssetID         – booked asset.
//  Renter          – caller that booked and paid.
//  CheckIn/Out     – interval bounds, CheckIn < CheckOut.
//  Days            – whole days in the interval.
//  TotalPrice      – Days * price per day at booking time.
//  EscrowedAmount  – funds held for this booking (equals TotalPrice).
//  Status          – PENDING, ACTIVE, COMPLETED or CANCELLED.
//  OwnersAtBooking – holdings snapshot, only under the booking-time basis.
//  Distribution    – payouts, set on completion.
//  Refund          – amount returned to the renter, set on cancellation.
//  CancellationFee – amount kept from the escrow on cancellation.
type Booking struct {
	ID              uint64          `json:"id"`
	AssetID         uint64          `json:"asset_id"`
	Renter          Address         `json:"renter"`
	CheckIn         time.Time       `json:"check_in"`
	CheckOut        time.Time       `json:"check_out"`
	Days            uint64          `json:"days"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	EscrowedAmount  decimal.Decimal `json:"escrowed_amount"`
	Status          BookingStatus   `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	OwnersAtBooking []Holding       `json:"owners_at_booking,omitempty"`
	Distribution    *Distribution   `json:"distribution,omitempty"`
	Refund          decimal.Decimal `json:"refund"`
	CancellationFee decimal.Decimal `json:"cancellation_fee"`
}

// Overlaps applies the half-open interval test against [in, out).
func (b Booking) Overlaps(in, out time.Time) bool {
	return b.CheckIn.Before(out) && in.Before(b.CheckOut)
}

// Clone returns a copy of b that shares no slice or pointer with it.
func (b Booking) Clone() Booking {
	if b.OwnersAtBooking != nil {
		b.OwnersAtBooking = append([]Holding(nil), b.OwnersAtBooking...)
	}
	if b.Distribution != nil {
		d := *b.Distribution
		d.Payouts = append([]Payout(nil), d.Payouts...)
		b.Distribution = &d
	}
	return b
}

// Payout is one shareholder's part of a distribution.
type Payout struct {
	Holder Address         `json:"holder"`
	Shares uint64          `json:"shares"`
	Amount decimal.Decimal `json:"amount"`
}

// Distribution records how a completed booking's escrow was split.
// Sum(Payouts.Amount) + Remainder == Escrowed always holds.
type Distribution struct {
	BookingID   uint64          `json:"booking_id"`
	Escrowed    decimal.Decimal `json:"escrowed"`
	TotalShares uint64          `json:"total_shares"`
	Basis       IncomeBasis     `json:"basis"`
	Payouts     []Payout        `json:"payouts"`
	Remainder   decimal.Decimal `json:"remainder"`
	RemainderTo Address         `json:"remainder_to"`
}

// Total returns the sum of payouts and remainder.
func (d Distribution) Total() decimal.Decimal {
	sum := d.Remainder
	for _, p := range d.Payouts {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// RentPayment is an entry in an asset's rent history, appended when a
// booking completes.
type RentPayment struct {
	BookingID uint64          `json:"booking_id"`
	Renter    Address         `json:"renter"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
}

// DateRange is a booked [CheckIn, CheckOut) interval.
type DateRange struct {
	BookingID uint64    `json:"booking_id"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
}
