package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Pool sizes the connection pool. The topology store is read on startup and
// on reload only, so the defaults stay small.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	PingTimeout time.Duration
}

func DefaultPool() Pool {
	return Pool{
		MaxOpen:     4,
		MaxIdle:     2,
		MaxLifetime: 30 * time.Minute,
		PingTimeout: 5 * time.Second,
	}
}

// Open connects through the pgx database/sql driver, which the caller registers
// with a blank import of github.com/jackc/pgx/v5/stdlib.
func Open(ctx context.Context, databaseURL string, pool Pool) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("openDB: open postgres database: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)

	if pool.PingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pool.PingTimeout)
		defer cancel()
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("openDB: verify postgres connection: %w", err)
	}

	return db, nil
}
