// Package repository holds the SQL stores: the event journal, accounts,
// refresh tokens and wallet nonces.  Sentinel errors let handlers tell
// conflicts and misses apart from infrastructure failures.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrEmailExists is returned when an account with the email exists.
	ErrEmailExists = errors.New("email already exists")
	// ErrAddressExists is returned when another account holds the address.
	ErrAddressExists = errors.New("address already registered")
	// ErrTokenInvalid covers unknown, revoked and expired refresh tokens.
	ErrTokenInvalid = errors.New("invalid refresh token")
	// ErrNonceInvalid covers unknown, used and expired wallet nonces and
	// nonces issued to another address.
	ErrNonceInvalid = errors.New("invalid or expired nonce")
)

const (
	mysqlDuplicateEntry = 1062
	pqUniqueViolation   = "23505"
)

// uniqueViolation reports whether err is a unique key violation and, if so,
// the name of the constraint or the driver message mentioning it.
func uniqueViolation(err error) (string, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return me.Message, true
	}
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == pqUniqueViolation {
		return pe.Constraint, true
	}
	return "", false
}

func mentions(constraint, column string) bool {
	return strings.Contains(strings.ToLower(constraint), column)
}
