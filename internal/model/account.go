package model

import "time"

// Roles carried in access tokens.
const (
	RoleMember   = "MEMBER"
	RoleOperator = "OPERATOR"
)

// Account is a row of the `accounts` table.  An account binds a login to
// the wallet address used as caller identity by the engine.
//
// Fields:
//  ID           – primary key.
//  Email        – unique, stored lower-cased.
//  PasswordHash – bcrypt hash.
//  Address      – unique wallet address.
//  Role         – MEMBER or OPERATOR.
type Account struct {
	ID           uint64    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Address      Address   `db:"address"`
	Role         string    `db:"role"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// RefreshToken is a row of the `refresh_tokens` table.  Only the SHA-256
// hex digest of the raw token is stored.
type RefreshToken struct {
	ID        uint64     `db:"id"`
	AccountID uint64     `db:"account_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}
