package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// TokenRepo persists and validates refresh tokens by their hash.
type TokenRepo struct{ DB *sqlx.DB }

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, accountID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		r.DB.Rebind("INSERT INTO refresh_tokens (account_id, token_hash, expires_at) VALUES (?,?,?)"),
		accountID, tokenHash, exp.UTC())
	return err
}

// ValidateRefresh returns the owning account if the token exists and is
// neither revoked nor expired at now.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error) {
	var row struct {
		AccountID uint64       `db:"account_id"`
		ExpiresAt time.Time    `db:"expires_at"`
		RevokedAt sql.NullTime `db:"revoked_at"`
	}
	err := r.DB.GetContext(ctx, &row,
		r.DB.Rebind("SELECT account_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash = ? LIMIT 1"),
		tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTokenInvalid
		}
		return 0, err
	}
	if row.RevokedAt.Valid || now.UTC().After(row.ExpiresAt.UTC()) {
		return 0, ErrTokenInvalid
	}
	return row.AccountID, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		r.DB.Rebind("UPDATE refresh_tokens SET revoked_at = CURRENT_TIMESTAMP WHERE token_hash = ? AND revoked_at IS NULL"),
		tokenHash)
	return err
}

// RevokeAllForAccount revokes every active token of the account.
func (r *TokenRepo) RevokeAllForAccount(ctx context.Context, accountID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		r.DB.Rebind("UPDATE refresh_tokens SET revoked_at = CURRENT_TIMESTAMP WHERE account_id = ? AND revoked_at IS NULL"),
		accountID)
	return err
}
