package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/smartrent-ledger/internal/database"
	"github.com/iliyamo/smartrent-ledger/internal/model"
	"github.com/iliyamo/smartrent-ledger/internal/utils"
)

const accountColumns = "id, email, password_hash, address, role, is_active, created_at, updated_at"

type AccountRepo struct{ DB *sqlx.DB }

func NewAccountRepo(db *sqlx.DB) *AccountRepo { return &AccountRepo{DB: db} }

// Create hashes password and inserts the account, returning its ID.
func (r *AccountRepo) Create(ctx context.Context, email, password string, address model.Address, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}

	var id uint64
	if r.DB.DriverName() == database.DriverPostgres {
		err = r.DB.QueryRowxContext(ctx,
			"INSERT INTO accounts (email, password_hash, address, role) VALUES ($1,$2,$3,$4) RETURNING id",
			email, hash, address.String(), role).Scan(&id)
	} else {
		var res sql.Result
		res, err = r.DB.ExecContext(ctx,
			"INSERT INTO accounts (email, password_hash, address, role) VALUES (?,?,?,?)",
			email, hash, address.String(), role)
		if err == nil {
			var last int64
			last, err = res.LastInsertId()
			id = uint64(last)
		}
	}
	if err != nil {
		if constraint, dup := uniqueViolation(err); dup {
			if mentions(constraint, "address") {
				return 0, ErrAddressExists
			}
			return 0, ErrEmailExists
		}
		return 0, err
	}
	return id, nil
}

func (r *AccountRepo) getBy(ctx context.Context, column string, arg any) (model.Account, error) {
	var a model.Account
	q := r.DB.Rebind("SELECT " + accountColumns + " FROM accounts WHERE " + column + " = ? LIMIT 1")
	if err := r.DB.GetContext(ctx, &a, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, err
	}
	return a, nil
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return r.getBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return r.getBy(ctx, "id", id)
}

func (r *AccountRepo) GetByAddress(ctx context.Context, addr model.Address) (model.Account, error) {
	return r.getBy(ctx, "address", addr.String())
}
