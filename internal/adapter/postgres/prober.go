// Package postgres checks Postgres attachments before DuckDB attaches them.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/duckalog/duckalog/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

const defaultProbeTimeout = 10 * time.Second

// Prober opens a short-lived pgx connection to each attachment. DuckDB's
// own ATTACH error for an unreachable server is far less specific.
type Prober struct {
	timeout time.Duration
}

func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Prober{timeout: timeout}
}

func (p *Prober) Probe(ctx context.Context, att domain.PostgresAttachment) error {
	cfg, err := pgx.ParseConfig(att.URL())
	if err != nil {
		return fmt.Errorf("parsing connection settings: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting (%s timeout): %w", p.timeout, err)
	}
	defer func() { _ = conn.Close(context.Background()) }()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	if att.ReadOnly {
		return nil
	}

	var readOnly string
	if err := conn.QueryRow(ctx, "SHOW transaction_read_only").Scan(&readOnly); err != nil {
		return fmt.Errorf("checking transaction mode: %w", err)
	}
	if readOnly == "on" {
		return fmt.Errorf("server only accepts read-only transactions; set read_only: true on the attachment")
	}
	return nil
}
