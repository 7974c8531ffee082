package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/smartrent-ledger/internal/model"
)

// NonceRepo stores the one-time nonces a wallet signs to prove it controls
// an address.
type NonceRepo struct{ DB *sqlx.DB }

func NewNonceRepo(db *sqlx.DB) *NonceRepo { return &NonceRepo{DB: db} }

// Issue stores nonce for address together with the exact message the wallet
// is asked to sign.  Nonces that expired before now are purged first.
func (r *NonceRepo) Issue(ctx context.Context, nonce string, address model.Address, message string, now, exp time.Time) error {
	if _, err := r.deleteExpired(ctx, now); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx,
		r.DB.Rebind("INSERT INTO wallet_nonces (nonce, address, message, expires_at) VALUES (?,?,?,?)"),
		nonce, address.String(), message, exp.UTC())
	return err
}

// Consume marks nonce used and returns its message.  It fails with
// ErrNonceInvalid unless the nonce was issued to address, is unused and has
// not expired at now.  Only one of two concurrent consumers succeeds.
func (r *NonceRepo) Consume(ctx context.Context, nonce string, address model.Address, now time.Time) (string, error) {
	var row struct {
		Message   string       `db:"message"`
		ExpiresAt time.Time    `db:"expires_at"`
		UsedAt    sql.NullTime `db:"used_at"`
	}
	err := r.DB.GetContext(ctx, &row,
		r.DB.Rebind("SELECT message, expires_at, used_at FROM wallet_nonces WHERE nonce = ? AND address = ? LIMIT 1"),
		nonce, address.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNonceInvalid
		}
		return "", err
	}
	if row.UsedAt.Valid || !now.UTC().Before(row.ExpiresAt.UTC()) {
		return "", ErrNonceInvalid
	}

	res, err := r.DB.ExecContext(ctx,
		r.DB.Rebind("UPDATE wallet_nonces SET used_at = ? WHERE nonce = ? AND used_at IS NULL"),
		now.UTC(), nonce)
	if err != nil {
		return "", err
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", err
	} else if n == 0 {
		return "", ErrNonceInvalid
	}
	return row.Message, nil
}

func (r *NonceRepo) deleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		r.DB.Rebind("DELETE FROM wallet_nonces WHERE expires_at < ?"), now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
