package port

import (
	"context"

	"github.com/duckalog/duckalog/internal/core/domain"
)

type SchemaInfo struct {
	Name      string `json:"name"`
	ViewCount int    `json:"view_count"`
}

// ViewInfo is one relation in the built catalog. Type is "VIEW" for catalog
// views and "BASE TABLE" for tables that live in the database file.
type ViewInfo struct {
	Schema      string   `json:"schema"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	ColumnCount int      `json:"column_count"`
	Comment     string   `json:"comment,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type ColumnInfo struct {
	Name       string          `json:"name"`
	DataType   string          `json:"data_type"`
	IsNullable bool            `json:"is_nullable"`
	Comment    string          `json:"comment,omitempty"`
	Mask       domain.MaskType `json:"mask,omitempty"`
}

type ViewDetail struct {
	Schema     string       `json:"schema"`
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	Comment    string       `json:"comment,omitempty"`
	Tags       []string     `json:"tags,omitempty"`
	Definition string       `json:"definition,omitempty"`
	Columns    []ColumnInfo `json:"columns"`
}

// CatalogExplorer browses a built catalog.
type CatalogExplorer interface {
	ListSchemas(ctx context.Context) ([]SchemaInfo, error)
	ListViews(ctx context.Context) ([]ViewInfo, error)
	DescribeView(ctx context.Context, schema, name string) (*ViewDetail, error)
	ProfileView(ctx context.Context, schema, name string) (*domain.ViewProfile, error)
}
