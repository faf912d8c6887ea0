package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/duckalog/duckalog/internal/core/domain"
	"github.com/duckalog/duckalog/internal/core/port"
)

type Explorer struct {
	db *sql.DB
}

func NewExplorer(db *sql.DB) *Explorer {
	return &Explorer{db: db}
}

func (e *Explorer) ListSchemas(ctx context.Context) ([]port.SchemaInfo, error) {
	rows, err := e.db.QueryContext(ctx, queryListSchemas)
	if err != nil {
		return nil, fmt.Errorf("listing schemas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schemas []port.SchemaInfo
	for rows.Next() {
		var s port.SchemaInfo
		if err := rows.Scan(&s.Name, &s.ViewCount); err != nil {
			return nil, fmt.Errorf("scanning schema row: %w", err)
		}
		schemas = append(schemas, s)
	}
	return schemas, rows.Err()
}

func (e *Explorer) ListViews(ctx context.Context) ([]port.ViewInfo, error) {
	rows, err := e.db.QueryContext(ctx, queryListRelations)
	if err != nil {
		return nil, fmt.Errorf("listing views: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var views []port.ViewInfo
	for rows.Next() {
		var v port.ViewInfo
		var tags any
		if err := rows.Scan(&v.Schema, &v.Name, &v.Type, &v.ColumnCount, &v.Comment, &tags); err != nil {
			return nil, fmt.Errorf("scanning view row: %w", err)
		}
		v.Tags = stringList(tags)
		views = append(views, v)
	}
	return views, rows.Err()
}

func (e *Explorer) DescribeView(ctx context.Context, schema, name string) (*port.ViewDetail, error) {
	detail := &port.ViewDetail{Schema: schema, Name: name}

	err := e.db.QueryRowContext(ctx, queryRelation, schema, name, schema, name).
		Scan(&detail.Type, &detail.Comment, &detail.Definition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("view %s.%s: %w", schema, name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching view metadata: %w", err)
	}

	rows, err := e.db.QueryContext(ctx, queryColumns, schema, name)
	if err != nil {
		return nil, fmt.Errorf("fetching columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var c port.ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.Comment); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		detail.Columns = append(detail.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns: %w", err)
	}
	return detail, nil
}

// ProfileView runs SUMMARIZE over the view and classifies each column's
// cardinality against the exact row count.
func (e *Explorer) ProfileView(ctx context.Context, schema, name string) (*domain.ViewProfile, error) {
	if _, err := e.DescribeView(ctx, schema, name); err != nil {
		return nil, err
	}
	qname := domain.QualifiedName(schema, name)
	profile := &domain.ViewProfile{Schema: schema, Name: name}

	if err := e.db.QueryRowContext(ctx, "SELECT count(*) FROM "+qname).Scan(&profile.RowCount); err != nil {
		return nil, fmt.Errorf("counting rows: %w", err)
	}

	rows, err := e.db.QueryContext(ctx, "SUMMARIZE SELECT * FROM "+qname)
	if err != nil {
		return nil, fmt.Errorf("summarizing view: %w", err)
	}
	defer func() { _ = rows.Close() }()

	_, summary, _, err := scanRows(rows, 0)
	if err != nil {
		return nil, err
	}
	for _, r := range summary {
		distinct := toInt64(r["approx_unique"])
		profile.Columns = append(profile.Columns, domain.ColumnProfile{
			Name:           toString(r["column_name"]),
			Type:           toString(r["column_type"]),
			Min:            toString(r["min"]),
			Max:            toString(r["max"]),
			ApproxDistinct: distinct,
			NullPercent:    toFloat(r["null_percentage"]),
			Cardinality:    domain.ClassifyCardinality(distinct, profile.RowCount),
		})
	}
	return profile, nil
}

// stringList accepts the driver's representation of a VARCHAR[] value.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, toString(it))
	}
	return out
}
