package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/duckalog/duckalog/internal/core/port"
)

// Executor runs validated SELECT statements with a row cap and a timeout.
type Executor struct {
	db           *sql.DB
	maxRows      int
	queryTimeout time.Duration
}

func NewExecutor(db *sql.DB, maxRows int, queryTimeout time.Duration) *Executor {
	return &Executor{
		db:           db,
		maxRows:      maxRows,
		queryTimeout: queryTimeout,
	}
}

func (e *Executor) Execute(ctx context.Context, sql string) (*port.QueryResult, error) {
	if e.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.queryTimeout)
		defer cancel()
	}

	// One extra row tells us whether the cap cut anything off.
	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS _q LIMIT %d", strings.TrimSpace(sql), e.maxRows+1)

	rows, err := e.db.QueryContext(ctx, wrapped)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, out, truncated, err := scanRows(rows, e.maxRows)
	if err != nil {
		return nil, err
	}
	return &port.QueryResult{Columns: columns, Rows: out, Truncated: truncated}, nil
}
