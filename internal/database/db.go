package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// DSN builds the connection string for driver.
func DSN(driver, user, pass, host, port, name string) (string, error) {
	switch driver {
	case DriverMySQL, "":
		auth := user
		if pass != "" {
			auth = fmt.Sprintf("%s:%s", user, pass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			auth, host, port, name), nil
	case DriverPostgres:
		u := url.URL{
			Scheme:   "postgres",
			Host:     host + ":" + port,
			Path:     "/" + name,
			RawQuery: "sslmode=disable&timezone=UTC",
		}
		if pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
		return u.String(), nil
	}
	return "", fmt.Errorf("unsupported db driver %q", driver)
}

// Open connects to the database and verifies the connection.
func Open(driver, user, pass, host, port, name string) (*sqlx.DB, error) {
	if driver == "" {
		driver = DriverMySQL
	}
	dsn, err := DSN(driver, user, pass, host, port, name)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}
