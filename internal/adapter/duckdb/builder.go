package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/duckalog/duckalog/internal/core/domain"
)

// Builder applies rendered catalog statements. Session statements run first
// on a dedicated connection; schemas and views then run in one transaction
// on that same connection so a failing view leaves no partial catalog.
type Builder struct {
	db *sql.DB
}

func NewBuilder(db *sql.DB) *Builder {
	return &Builder{db: db}
}

func (b *Builder) Apply(ctx context.Context, stmts []domain.Statement) error {
	conn, err := b.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	for i, st := range stmts {
		if !st.Session() {
			continue
		}
		if _, err := conn.ExecContext(ctx, st.SQL); err != nil {
			return statementError(i, st, err)
		}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, st := range stmts {
		if st.Session() {
			continue
		}
		if _, err := tx.ExecContext(ctx, st.SQL); err != nil {
			return statementError(i, st, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing catalog: %w", err)
	}
	return nil
}

// Prepare replays session statements (extensions, settings, secrets,
// attachments) on a freshly opened catalog so its views resolve.
func (b *Builder) Prepare(ctx context.Context, stmts []domain.Statement) error {
	for i, st := range domain.SessionStatements(stmts) {
		if _, err := b.db.ExecContext(ctx, st.SQL); err != nil {
			return statementError(i, st, err)
		}
	}
	return nil
}

func statementError(i int, st domain.Statement, err error) error {
	return fmt.Errorf("statement %d (%s %s): %w", i+1, st.Kind, st.Target, err)
}
