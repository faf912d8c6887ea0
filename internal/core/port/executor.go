package port

import "context"

// QueryResult holds rows in column order as returned by the database.
type QueryResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated,omitempty"`
}

// QueryExecutor runs an already validated statement.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) (*QueryResult, error)
}
