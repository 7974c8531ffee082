package model

import "errors"

// ErrorKind classifies an engine failure.  Handlers translate kinds into
// HTTP status codes; callers that only care about the class of failure can
// compare against the kind sentinels below with errors.Is.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindAuthorization       ErrorKind = "authorization"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindInsufficientPayment ErrorKind = "insufficient_payment"
	KindStateConflict       ErrorKind = "state_conflict"
	KindArithmetic          ErrorKind = "arithmetic"
)

// Error is the single error type returned by the engine for business rule
// violations.  Reason is a short, stable, machine readable identifier.
// NotFound marks validation failures caused by an unknown id so the HTTP
// layer can answer 404 instead of 400.
type Error struct {
	Kind     ErrorKind
	Reason   string
	NotFound bool
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Reason
}

// Is lets a kind sentinel (an Error without a Reason) match every error of
// that kind.  Specific sentinels still match only themselves.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Reason == "" {
		return t.Kind == e.Kind
	}
	return t == e
}

// KindOf returns the kind of err, or "" when err is not an engine error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound reports whether err is a validation failure for an unknown id.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.NotFound
}

// Kind sentinels.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrAuthorization       = &Error{Kind: KindAuthorization}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance}
	ErrInsufficientPayment = &Error{Kind: KindInsufficientPayment}
	ErrStateConflict       = &Error{Kind: KindStateConflict}
	ErrArithmetic          = &Error{Kind: KindArithmetic}
)

// Validation failures.
var (
	ErrInvalidAddress   = &Error{Kind: KindValidation, Reason: "invalid address"}
	ErrInvalidAmount    = &Error{Kind: KindValidation, Reason: "amount must be a non-negative integer"}
	ErrZeroAmount       = &Error{Kind: KindValidation, Reason: "amount must be positive"}
	ErrZeroShares       = &Error{Kind: KindValidation, Reason: "total shares must be positive"}
	ErrUnknownAsset     = &Error{Kind: KindValidation, Reason: "unknown asset", NotFound: true}
	ErrUnknownListing   = &Error{Kind: KindValidation, Reason: "unknown listing", NotFound: true}
	ErrUnknownBooking   = &Error{Kind: KindValidation, Reason: "unknown booking", NotFound: true}
	ErrInvalidInterval  = &Error{Kind: KindValidation, Reason: "check-in must be before check-out"}
	ErrStayTooShort     = &Error{Kind: KindValidation, Reason: "stay must cover at least one day"}
	ErrNoRentalTerms    = &Error{Kind: KindValidation, Reason: "asset has no rental terms"}
	ErrSelfPurchase     = &Error{Kind: KindValidation, Reason: "seller cannot buy own listing"}
	ErrInvalidBps       = &Error{Kind: KindValidation, Reason: "basis points must be within 0..10000"}
	ErrUnknownEventKind = &Error{Kind: KindValidation, Reason: "unknown event kind"}
)

// Authorization failures.
var (
	ErrNotHolder          = &Error{Kind: KindAuthorization, Reason: "caller is not the share holder"}
	ErrNotSeller          = &Error{Kind: KindAuthorization, Reason: "caller is not the seller"}
	ErrNotTopShareholder  = &Error{Kind: KindAuthorization, Reason: "caller is not the top shareholder"}
	ErrNotRenter          = &Error{Kind: KindAuthorization, Reason: "caller is not the renter"}
	ErrNotRenterOrManager = &Error{Kind: KindAuthorization, Reason: "caller is neither the renter nor the top shareholder"}
)

// Balance and payment failures.
var (
	ErrShareBalanceTooLow = &Error{Kind: KindInsufficientBalance, Reason: "share balance too low"}
	ErrFundsTooLow        = &Error{Kind: KindInsufficientBalance, Reason: "withdrawable funds too low"}
	ErrPaymentMismatch    = &Error{Kind: KindInsufficientPayment, Reason: "payment must equal amount times price per share"}
	ErrPaymentTooLow      = &Error{Kind: KindInsufficientPayment, Reason: "payment below total price"}
)

// State conflicts.
var (
	ErrAssetExists       = &Error{Kind: KindStateConflict, Reason: "asset already exists"}
	ErrAssetRegistered   = &Error{Kind: KindStateConflict, Reason: "asset already registered"}
	ErrListingInactive   = &Error{Kind: KindStateConflict, Reason: "listing is not active"}
	ErrListingExhausted  = &Error{Kind: KindStateConflict, Reason: "amount exceeds listing remainder"}
	ErrBookingOverlap    = &Error{Kind: KindStateConflict, Reason: "dates overlap an existing booking"}
	ErrInvalidTransition = &Error{Kind: KindStateConflict, Reason: "booking status does not allow this transition"}
	ErrDuplicateEventSeq = &Error{Kind: KindStateConflict, Reason: "event sequence already applied"}
)

// Arithmetic failures.
var (
	ErrOverflow = &Error{Kind: KindArithmetic, Reason: "share arithmetic overflow"}
)
