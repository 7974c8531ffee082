package model

import (
	"encoding/json"
	"time"
)

// EventKind names a committed engine operation.  Kinds double as AMQP
// message types and as the dispatch key when the journal is replayed.
type EventKind string

const (
	EventAssetMinted       EventKind = "asset.minted"
	EventSharesTransferred EventKind = "shares.transferred"
	EventListingCreated    EventKind = "listing.created"
	EventListingPurchased  EventKind = "listing.purchased"
	EventListingCancelled  EventKind = "listing.cancelled"
	EventTermsSet          EventKind = "rental.terms_set"
	EventRentalBooked      EventKind = "rental.booked"
	EventRentalActivated   EventKind = "rental.activated"
	EventRentalCompleted   EventKind = "rental.completed"
	EventRentalCancelled   EventKind = "rental.cancelled"
	EventFundsWithdrawn    EventKind = "funds.withdrawn"
)

// Event is one journal record.  Payload holds the operation's input and,
// for indexers, its result; replay only reads the input fields.
//
// Fields:
//  ID      – globally unique id (uuid), also the AMQP message id.
//  Seq     – position in the journal, assigned by the engine, starting at 1.
//  Kind    – operation name.
//  Caller  – authenticated caller that submitted the operation.
//  At      – engine clock at execution; replay reuses it.
//  Payload – JSON document specific to Kind.
type Event struct {
	ID      string          `json:"id" db:"event_id"`
	Seq     uint64          `json:"seq" db:"seq"`
	Kind    EventKind       `json:"kind" db:"kind"`
	Caller  Address         `json:"caller" db:"caller"`
	At      time.Time       `json:"at" db:"occurred_at"`
	Payload json.RawMessage `json:"payload" db:"payload"`
}
