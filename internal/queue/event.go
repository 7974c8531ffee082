// Package queue defines the broker payloads and the lock access consumer.
package queue

import (
	"time"

	"github.com/iliyamo/smartrent-ledger/internal/model"
)

const (
	// LedgerEventsQueue carries every committed engine event.
	LedgerEventsQueue = "ledger.events"
	// LockAccessQueue carries booking state changes for the door lock
	// actuator.
	LockAccessQueue = "lock.access"
)

// LockAccessEvent tells the lock actuator whether a renter may enter.
// Access is granted while Status is ACTIVE.
type LockAccessEvent struct {
	BookingID uint64              `json:"booking_id"`
	AssetID   uint64              `json:"asset_id"`
	Renter    model.Address       `json:"renter"`
	Status    model.BookingStatus `json:"status"`
	Granted   bool                `json:"granted"`
	CheckIn   time.Time           `json:"check_in"`
	CheckOut  time.Time           `json:"check_out"`
	ChangedAt time.Time           `json:"changed_at"`
}

// NewLockAccessEvent builds the lock message for b's current status.
func NewLockAccessEvent(b model.Booking) LockAccessEvent {
	return LockAccessEvent{
		BookingID: b.ID,
		AssetID:   b.AssetID,
		Renter:    b.Renter,
		Status:    b.Status,
		Granted:   b.Status == model.BookingActive,
		CheckIn:   b.CheckIn,
		CheckOut:  b.CheckOut,
		ChangedAt: b.UpdatedAt,
	}
}
