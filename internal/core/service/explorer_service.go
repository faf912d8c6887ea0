package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/duckalog/duckalog/internal/core/domain"
	"github.com/duckalog/duckalog/internal/core/port"
)

// ErrAmbiguousView is returned when a bare view name exists in more than one
// schema.
var ErrAmbiguousView = errors.New("ambiguous view name")

// ExplorerService browses the built catalog and resolves bare view names to
// their schema.
type ExplorerService struct {
	explorer port.CatalogExplorer
}

func NewExplorerService(explorer port.CatalogExplorer) *ExplorerService {
	return &ExplorerService{explorer: explorer}
}

func (s *ExplorerService) ListSchemas(ctx context.Context) ([]port.SchemaInfo, error) {
	return s.explorer.ListSchemas(ctx)
}

func (s *ExplorerService) ListViews(ctx context.Context) ([]port.ViewInfo, error) {
	return s.explorer.ListViews(ctx)
}

// DescribeView describes schema.name. An empty schema is resolved by looking
// the name up across all schemas; ambiguous names must be qualified.
func (s *ExplorerService) DescribeView(ctx context.Context, schema, name string) (*port.ViewDetail, error) {
	schema, err := s.resolveSchema(ctx, schema, name)
	if err != nil {
		return nil, err
	}
	return s.explorer.DescribeView(ctx, schema, name)
}

// ProfileView summarises the rows behind schema.name.
func (s *ExplorerService) ProfileView(ctx context.Context, schema, name string) (*domain.ViewProfile, error) {
	schema, err := s.resolveSchema(ctx, schema, name)
	if err != nil {
		return nil, err
	}
	return s.explorer.ProfileView(ctx, schema, name)
}

func (s *ExplorerService) resolveSchema(ctx context.Context, schema, name string) (string, error) {
	if schema != "" {
		return schema, nil
	}
	views, err := s.explorer.ListViews(ctx)
	if err != nil {
		return "", fmt.Errorf("listing views: %w", err)
	}
	var matches []string
	for _, v := range views {
		if v.Name == name {
			matches = append(matches, v.Schema)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("view %q: %w", name, domain.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: view %q exists in schemas %v; qualify it with a schema", ErrAmbiguousView, name, matches)
	}
}
