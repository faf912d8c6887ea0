// Package annotate enriches explorer results with the descriptions, tags and
// masks declared in the catalog file.
package annotate

import (
	"context"
	"fmt"

	"github.com/duckalog/duckalog/internal/core/domain"
	"github.com/duckalog/duckalog/internal/core/port"
)

// defaultSchema is where DuckDB puts views declared without a schema.
const defaultSchema = "main"

// Explorer decorates a CatalogExplorer. Catalog descriptions only fill empty
// comments, so a COMMENT ON set in the database wins. Profile min/max values
// of masked columns are masked the same way query results are.
type Explorer struct {
	inner port.CatalogExplorer
	views map[string]domain.View
}

func NewExplorer(inner port.CatalogExplorer, cat *domain.Catalog) *Explorer {
	views := make(map[string]domain.View)
	if cat != nil {
		for _, v := range cat.Views {
			views[key(v.Schema, v.Name)] = v
		}
	}
	return &Explorer{inner: inner, views: views}
}

func key(schema, name string) string {
	if schema == "" {
		schema = defaultSchema
	}
	return schema + "." + name
}

func (e *Explorer) ListSchemas(ctx context.Context) ([]port.SchemaInfo, error) {
	return e.inner.ListSchemas(ctx)
}

func (e *Explorer) ListViews(ctx context.Context) ([]port.ViewInfo, error) {
	views, err := e.inner.ListViews(ctx)
	if err != nil {
		return nil, err
	}
	for i, v := range views {
		cv, ok := e.views[key(v.Schema, v.Name)]
		if !ok {
			continue
		}
		if v.Comment == "" {
			views[i].Comment = cv.Description
		}
		if len(v.Tags) == 0 {
			views[i].Tags = cv.Tags
		}
	}
	return views, nil
}

func (e *Explorer) DescribeView(ctx context.Context, schema, name string) (*port.ViewDetail, error) {
	detail, err := e.inner.DescribeView(ctx, schema, name)
	if err != nil {
		return nil, err
	}
	cv, ok := e.views[key(detail.Schema, detail.Name)]
	if !ok {
		return detail, nil
	}
	if detail.Comment == "" {
		detail.Comment = cv.Description
	}
	if len(detail.Tags) == 0 {
		detail.Tags = cv.Tags
	}
	for i, col := range detail.Columns {
		spec, ok := cv.Columns[col.Name]
		if !ok {
			continue
		}
		if col.Comment == "" {
			detail.Columns[i].Comment = spec.Description
		}
		detail.Columns[i].Mask = spec.Mask
	}
	return detail, nil
}

func (e *Explorer) ProfileView(ctx context.Context, schema, name string) (*domain.ViewProfile, error) {
	profile, err := e.inner.ProfileView(ctx, schema, name)
	if err != nil {
		return nil, err
	}
	masks := e.views[key(profile.Schema, profile.Name)].Masks()
	for i, col := range profile.Columns {
		m, ok := masks[col.Name]
		if !ok {
			continue
		}
		profile.Columns[i].Min = maskString(col.Min, m)
		profile.Columns[i].Max = maskString(col.Max, m)
	}
	return profile, nil
}

func maskString(s string, m domain.MaskType) string {
	if s == "" {
		return s
	}
	v := domain.ApplyMask(s, m)
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
