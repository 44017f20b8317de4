// Package storage opens the Order Store selected by DB_DRIVER.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m2b-ebook/api/internal/database"
	"github.com/m2b-ebook/api/internal/database/gormstore"
	"github.com/m2b-ebook/api/internal/service"
)

// Open connects the store for driver and brings its schema up to date.
// Postgres goes through pgx and golang-migrate; MySQL and SQLite through
// gorm. The returned func releases the connection pool.
func Open(ctx context.Context, driver, databaseURL string) (service.OrderStore, func(), error) {
	switch driver {
	case "postgres":
		if err := database.Migrate(databaseURL); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		return database.New(pool), pool.Close, nil
	case "mysql", "sqlite":
		gdb, err := gormstore.Open(driver, databaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect %s: %w", driver, err)
		}
		if err := gormstore.Migrate(gdb); err != nil {
			return nil, nil, fmt.Errorf("migrate %s: %w", driver, err)
		}
		closeFn := func() {
			if sqlDB, err := gdb.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return gormstore.New(gdb), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}
