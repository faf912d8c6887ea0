package port

import "context"

// AuditEntry records one query that reached the gate.
type AuditEntry struct {
	Source       string // "ui", "api", "mcp", "cli"
	SQL          string
	Rejected     bool
	RowsReturned int
	DurationMS   int64
	Err          error
}

// QueryAuditor records query audit events.
type QueryAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
