// Package duckdb implements the catalog builder, query executor and explorer
// on top of the DuckDB database/sql driver.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/duckalog/duckalog/internal/core/domain"
)

const pingTimeout = 10 * time.Second

// Open opens the DuckDB database at path. ":memory:" (or "") opens an
// in-memory instance; readOnly is ignored for it.
func Open(ctx context.Context, path string, readOnly bool) (*sql.DB, error) {
	db, err := sql.Open("duckdb", dsn(path, readOnly))
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening duckdb database %q: %w", path, err)
	}
	return db, nil
}

func dsn(path string, readOnly bool) string {
	if path == "" || path == domain.MemoryDatabase {
		return ""
	}
	if readOnly {
		return path + "?access_mode=read_only"
	}
	return path
}
