package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
)

const migrationTable = "schema_migrations"

var mysqlMigrations = []*migrate.Migration{
	{
		Id: "0001_ledger_events",
		Up: []string{`CREATE TABLE ledger_events (
			seq         BIGINT UNSIGNED NOT NULL PRIMARY KEY,
			event_id    CHAR(36)        NOT NULL,
			kind        VARCHAR(64)     NOT NULL,
			caller      CHAR(42)        NOT NULL,
			payload     JSON            NOT NULL,
			occurred_at DATETIME(6)     NOT NULL,
			UNIQUE KEY uq_ledger_events_event_id (event_id),
			KEY idx_ledger_events_kind (kind)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
		Down: []string{"DROP TABLE ledger_events"},
	},
	{
		Id: "0002_accounts",
		Up: []string{`CREATE TABLE accounts (
			id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			email         VARCHAR(255)    NOT NULL,
			password_hash VARCHAR(255)    NOT NULL,
			address       CHAR(42)        NOT NULL,
			role          VARCHAR(16)     NOT NULL DEFAULT 'MEMBER',
			is_active     BOOLEAN         NOT NULL DEFAULT TRUE,
			created_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uq_accounts_email (email),
			UNIQUE KEY uq_accounts_address (address)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
		Down: []string{"DROP TABLE accounts"},
	},
	{
		Id: "0003_refresh_tokens",
		Up: []string{`CREATE TABLE refresh_tokens (
			id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			account_id BIGINT UNSIGNED NOT NULL,
			token_hash CHAR(64)        NOT NULL,
			expires_at DATETIME        NOT NULL,
			revoked_at DATETIME        NULL,
			created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_refresh_tokens_hash (token_hash),
			KEY idx_refresh_tokens_account (account_id),
			CONSTRAINT fk_refresh_tokens_account FOREIGN KEY (account_id) REFERENCES accounts (id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
		Down: []string{"DROP TABLE refresh_tokens"},
	},
	{
		Id: "0004_wallet_nonces",
		Up: []string{`CREATE TABLE wallet_nonces (
			nonce      CHAR(32)    NOT NULL PRIMARY KEY,
			address    CHAR(42)    NOT NULL,
			message    TEXT        NOT NULL,
			expires_at DATETIME(6) NOT NULL,
			used_at    DATETIME(6) NULL,
			created_at DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP,
			KEY idx_wallet_nonces_address (address)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
		Down: []string{"DROP TABLE wallet_nonces"},
	},
}

var postgresMigrations = []*migrate.Migration{
	{
		Id: "0001_ledger_events",
		Up: []string{
			`CREATE TABLE ledger_events (
				seq         BIGINT      NOT NULL PRIMARY KEY,
				event_id    UUID        NOT NULL UNIQUE,
				kind        VARCHAR(64) NOT NULL,
				caller      CHAR(42)    NOT NULL,
				payload     JSONB       NOT NULL,
				occurred_at TIMESTAMPTZ NOT NULL
			)`,
			"CREATE INDEX idx_ledger_events_kind ON ledger_events (kind)",
		},
		Down: []string{"DROP TABLE ledger_events"},
	},
	{
		Id: "0002_accounts",
		Up: []string{`CREATE TABLE accounts (
			id            BIGSERIAL    PRIMARY KEY,
			email         VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			address       CHAR(42)     NOT NULL UNIQUE,
			role          VARCHAR(16)  NOT NULL DEFAULT 'MEMBER',
			is_active     BOOLEAN      NOT NULL DEFAULT TRUE,
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`},
		Down: []string{"DROP TABLE accounts"},
	},
	{
		Id: "0003_refresh_tokens",
		Up: []string{
			`CREATE TABLE refresh_tokens (
				id         BIGSERIAL   PRIMARY KEY,
				account_id BIGINT      NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
				token_hash CHAR(64)    NOT NULL UNIQUE,
				expires_at TIMESTAMPTZ NOT NULL,
				revoked_at TIMESTAMPTZ NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			"CREATE INDEX idx_refresh_tokens_account ON refresh_tokens (account_id)",
		},
		Down: []string{"DROP TABLE refresh_tokens"},
	},
	{
		Id: "0004_wallet_nonces",
		Up: []string{
			`CREATE TABLE wallet_nonces (
				nonce      CHAR(32)    NOT NULL PRIMARY KEY,
				address    CHAR(42)    NOT NULL,
				message    TEXT        NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL,
				used_at    TIMESTAMPTZ NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			"CREATE INDEX idx_wallet_nonces_address ON wallet_nonces (address)",
		},
		Down: []string{"DROP TABLE wallet_nonces"},
	},
}

// Migrations returns the schema for driver.
func Migrations(driver string) (*migrate.MemoryMigrationSource, error) {
	switch driver {
	case DriverMySQL, "":
		return &migrate.MemoryMigrationSource{Migrations: mysqlMigrations}, nil
	case DriverPostgres:
		return &migrate.MemoryMigrationSource{Migrations: postgresMigrations}, nil
	}
	return nil, fmt.Errorf("unsupported db driver %q", driver)
}

// Migrate applies every pending migration and returns how many ran.
func Migrate(db *sqlx.DB) (int, error) {
	src, err := Migrations(db.DriverName())
	if err != nil {
		return 0, err
	}
	ms := migrate.MigrationSet{TableName: migrationTable}
	n, err := ms.Exec(db.DB, db.DriverName(), src, migrate.Up)
	if err != nil {
		return n, fmt.Errorf("apply migrations: %w", err)
	}
	return n, nil
}
