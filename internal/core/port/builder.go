package port

import (
	"context"

	"github.com/duckalog/duckalog/internal/core/domain"
)

// CatalogApplier applies rendered catalog statements to a database.
// Implementations apply all statements or none.
type CatalogApplier interface {
	Apply(ctx context.Context, stmts []domain.Statement) error
}

// AttachmentProber checks that an attached Postgres database is reachable
// before the catalog is built against it.
type AttachmentProber interface {
	Probe(ctx context.Context, att domain.PostgresAttachment) error
}
