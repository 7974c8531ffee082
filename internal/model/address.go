package model

import (
	"regexp"
	"strings"
)

// Address identifies a holder, seller, renter or fee recipient.  It is the
// lower-cased hex form of a 20-byte account address ("0x" + 40 hex chars).
// The lower-cased form is what the engine compares and sorts, so two
// spellings of the same account always collapse to one key.
type Address string

var addressPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// ParseAddress normalizes and validates a raw address string.
func ParseAddress(raw string) (Address, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if !addressPattern.MatchString(s) {
		return "", ErrInvalidAddress
	}
	return Address(s), nil
}

// MustAddress is ParseAddress for constants and tests.  It panics on bad input.
func MustAddress(raw string) Address {
	a, err := ParseAddress(raw)
	if err != nil {
		panic("invalid address: " + raw)
	}
	return a
}

// Valid reports whether a is in normalized form.
func (a Address) Valid() bool { return addressPattern.MatchString(string(a)) }

func (a Address) String() string { return string(a) }

// Less orders addresses lexicographically on the normalized form.  It is the
// tie-break used whenever the engine needs a reproducible holder order.
func (a Address) Less(b Address) bool { return a < b }
