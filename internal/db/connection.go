package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	"github.com/rk-analyzer/internal/config"
	"github.com/rk-analyzer/internal/dataset"
)

// Connection holds the database connection
type Connection struct {
	DB *sql.DB
}

// NewConnection opens the pool and checks the server is reachable
func NewConnection(ctx context.Context, cfg config.DatabaseConfig) (*Connection, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", dataset.ErrStoreUnavailable, err)
	}

	// Set connection pool settings
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 20
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)

	return &Connection{DB: db}, nil
}

// Ping checks the connection is still alive
func (c *Connection) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", dataset.ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.DB.Close()
}

// Unavailable reports whether err means the server cannot be reached or is
// shutting down, as opposed to a failure of one statement
func Unavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, dataset.ErrStoreUnavailable) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		class := pqErr.Code.Class()
		// 08: connection exception, 57: operator intervention (admin shutdown, crash)
		return class == "08" || (class == "57" && pqErr.Code != "57014")
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Classify wraps err with ErrStoreUnavailable when the server is unreachable
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if Unavailable(err) && !errors.Is(err, dataset.ErrStoreUnavailable) {
		return fmt.Errorf("%w: %s: %v", dataset.ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
