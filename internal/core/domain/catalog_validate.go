package domain

import (
	"errors"
	"fmt"
)

// Validate checks structural rules that the renderer relies on. All problems
// are reported together, each wrapped in ErrInvalidCatalog.
func (c *Catalog) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidCatalog, fmt.Sprintf(format, args...)))
	}

	if c.Version != 0 && c.Version != 1 {
		add("unsupported version %d", c.Version)
	}

	for _, ext := range append(append([]string{}, c.DuckDB.InstallExtensions...), c.DuckDB.LoadExtensions...) {
		if err := ValidateIdentifier(ext); err != nil {
			add("duckdb extension: %v", err)
		}
	}
	for key := range c.DuckDB.Settings {
		if err := ValidateIdentifier(key); err != nil {
			add("duckdb.settings: %v", err)
		}
	}

	secretNames := make(map[string]bool)
	for _, s := range c.Secrets {
		if err := s.Validate(); err != nil {
			add("%v", err)
			continue
		}
		if secretNames[s.Name] {
			add("duplicate secret name %q", s.Name)
		}
		secretNames[s.Name] = true
	}

	aliases := make(map[string]SourceType)
	addAlias := func(alias string, kind SourceType) {
		if err := ValidateIdentifier(alias); err != nil {
			add("%s attachment: %v", kind, err)
			return
		}
		if _, dup := aliases[alias]; dup {
			add("duplicate attachment alias %q", alias)
			return
		}
		aliases[alias] = kind
	}
	for _, a := range c.Attachments.DuckDB {
		addAlias(a.Alias, SourceDuckDB)
		if a.Path == "" {
			add("duckdb attachment %q: path is required", a.Alias)
		}
	}
	for _, a := range c.Attachments.SQLite {
		addAlias(a.Alias, SourceSQLite)
		if a.Path == "" {
			add("sqlite attachment %q: path is required", a.Alias)
		}
	}
	for _, a := range c.Attachments.Postgres {
		addAlias(a.Alias, SourcePostgres)
		if a.Host == "" || a.Database == "" {
			add("postgres attachment %q: host and database are required", a.Alias)
		}
	}

	views := make(map[string]bool)
	for i, v := range c.Views {
		if err := ValidateIdentifier(v.Name); err != nil {
			add("views[%d]: %v", i, err)
			continue
		}
		if v.Schema != "" {
			if err := ValidateIdentifier(v.Schema); err != nil {
				add("view %q schema: %v", v.Name, err)
			}
		}
		if views[v.Key()] {
			add("duplicate view %q", v.Key())
		}
		views[v.Key()] = true

		if err := v.validateSource(aliases); err != nil {
			add("view %q: %v", v.Key(), err)
		}
		for col, spec := range v.Columns {
			if !spec.Mask.Valid() {
				add("view %q column %q: invalid mask %q (allowed: redact, hash, partial, null)", v.Key(), col, spec.Mask)
			}
		}
	}

	return errors.Join(errs...)
}

func (v View) validateSource(aliases map[string]SourceType) error {
	n := 0
	if v.SQL != "" {
		n++
	}
	if v.SQLFile != nil {
		n++
	}
	if v.SQLTemplate != nil {
		n++
	}
	if v.Source != "" {
		n++
	}
	if n != 1 {
		return fmt.Errorf("exactly one of sql, sql_file, sql_template or source is required (got %d)", n)
	}

	switch {
	case v.SQLFile != nil && v.SQLFile.Path == "":
		return fmt.Errorf("sql_file.path is required")
	case v.SQLTemplate != nil && v.SQLTemplate.Path == "":
		return fmt.Errorf("sql_template.path is required")
	case v.Source == "":
		return nil
	}

	if _, ok := fileScan[v.Source]; ok {
		if v.URI == "" {
			return fmt.Errorf("source %s requires uri", v.Source)
		}
		return nil
	}

	switch v.Source {
	case SourceDuckDB, SourceSQLite, SourcePostgres:
	default:
		return fmt.Errorf("unknown source %q", v.Source)
	}
	if v.Database == "" || v.Table == "" {
		return fmt.Errorf("source %s requires database and table", v.Source)
	}
	kind, ok := aliases[v.Database]
	if !ok {
		return fmt.Errorf("database %q is not an attachment alias", v.Database)
	}
	if kind != v.Source {
		return fmt.Errorf("database %q is a %s attachment, not %s", v.Database, kind, v.Source)
	}
	return nil
}
