// Package catalogfile reads catalog YAML files from disk.
package catalogfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/duckalog/duckalog/internal/core/domain"
	"gopkg.in/yaml.v3"
)

var ErrMissingEnv = errors.New("environment variable not set")

var envRefRe = regexp.MustCompile(`\$\{env:([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads the catalog at path, expands ${env:NAME} references, resolves
// SQL files and templates relative to the file's directory and validates
// the result.
func Load(path string) (*domain.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse is Load for YAML already in memory. Relative paths resolve
// against baseDir.
func Parse(data []byte, baseDir string) (*domain.Catalog, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing catalog YAML: %w", err)
	}
	if err := expandEnv(&root); err != nil {
		return nil, err
	}

	var cat domain.Catalog
	if root.Kind != 0 {
		if err := root.Decode(&cat); err != nil {
			return nil, fmt.Errorf("decoding catalog: %w", err)
		}
	}

	resolvePaths(&cat, baseDir)
	if err := loadBodies(&cat, baseDir); err != nil {
		return nil, err
	}

	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("validating catalog: %w", err)
	}
	return &cat, nil
}

// expandEnv replaces ${env:NAME} in every scalar. Mapping keys are left
// alone. All unset variables are reported together.
func expandEnv(n *yaml.Node) error {
	var errs []error
	var walk func(n *yaml.Node)
	walk = func(n *yaml.Node) {
		switch n.Kind {
		case yaml.ScalarNode:
			if !envRefRe.MatchString(n.Value) {
				return
			}
			n.Value = envRefRe.ReplaceAllStringFunc(n.Value, func(m string) string {
				name := envRefRe.FindStringSubmatch(m)[1]
				v, ok := os.LookupEnv(name)
				if !ok {
					errs = append(errs, fmt.Errorf("%w: %s (line %d)", ErrMissingEnv, name, n.Line))
					return m
				}
				return v
			})
			// Re-resolve plain scalars so "${env:PORT}" can decode into an int.
			if n.Style == 0 {
				n.Tag = ""
			}
		case yaml.MappingNode:
			for i := 1; i < len(n.Content); i += 2 {
				walk(n.Content[i])
			}
		default:
			for _, c := range n.Content {
				walk(c)
			}
		}
	}
	walk(n)
	return errors.Join(errs...)
}

// resolvePaths anchors local relative paths at baseDir. Remote URIs
// (anything with a scheme) and :memory: are kept verbatim.
func resolvePaths(cat *domain.Catalog, baseDir string) {
	if db := cat.DuckDB.Database; db != "" && db != domain.MemoryDatabase {
		cat.DuckDB.Database = resolve(baseDir, db)
	}
	for i := range cat.Attachments.DuckDB {
		cat.Attachments.DuckDB[i].Path = resolve(baseDir, cat.Attachments.DuckDB[i].Path)
	}
	for i := range cat.Attachments.SQLite {
		cat.Attachments.SQLite[i].Path = resolve(baseDir, cat.Attachments.SQLite[i].Path)
	}
	for i := range cat.Views {
		if cat.Views[i].URI != "" {
			cat.Views[i].URI = resolve(baseDir, cat.Views[i].URI)
		}
	}
}

func resolve(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || strings.Contains(p, "://") || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

func loadBodies(cat *domain.Catalog, baseDir string) error {
	var errs []error
	for i := range cat.Views {
		v := &cat.Views[i]
		switch {
		case v.SQLFile != nil && v.SQLFile.Path != "":
			body, err := os.ReadFile(resolve(baseDir, v.SQLFile.Path))
			if err != nil {
				errs = append(errs, fmt.Errorf("view %q: reading sql_file: %w", v.Key(), err))
				continue
			}
			v.Body = string(body)
		case v.SQLTemplate != nil && v.SQLTemplate.Path != "":
			tmpl, err := os.ReadFile(resolve(baseDir, v.SQLTemplate.Path))
			if err != nil {
				errs = append(errs, fmt.Errorf("view %q: reading sql_template: %w", v.Key(), err))
				continue
			}
			body, err := domain.RenderTemplate(string(tmpl), v.SQLTemplate.Variables)
			if err != nil {
				errs = append(errs, fmt.Errorf("view %q: %w", v.Key(), err))
				continue
			}
			v.Body = body
		}
	}
	return errors.Join(errs...)
}
