package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultDatabase is the catalog file used when duckdb.database is omitted.
const DefaultDatabase = "catalog.duckdb"

// MemoryDatabase selects an in-memory DuckDB instance.
const MemoryDatabase = ":memory:"

var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog is the declarative description of a DuckDB catalog.
type Catalog struct {
	Version     int          `yaml:"version"`
	DuckDB      DuckDBConfig `yaml:"duckdb"`
	Attachments Attachments  `yaml:"attachments"`
	Secrets     []Secret     `yaml:"secrets"`
	Views       []View       `yaml:"views"`
}

type DuckDBConfig struct {
	Database          string         `yaml:"database"`
	InstallExtensions []string       `yaml:"install_extensions"`
	LoadExtensions    []string       `yaml:"load_extensions"`
	Pragmas           []string       `yaml:"pragmas"`
	Settings          map[string]any `yaml:"settings"`
}

type Attachments struct {
	DuckDB   []FileAttachment     `yaml:"duckdb"`
	SQLite   []FileAttachment     `yaml:"sqlite"`
	Postgres []PostgresAttachment `yaml:"postgres"`
}

// FileAttachment is a DuckDB or SQLite database file attached under Alias.
type FileAttachment struct {
	Alias    string `yaml:"alias"`
	Path     string `yaml:"path"`
	ReadOnly bool   `yaml:"read_only"`
}

type PostgresAttachment struct {
	Alias    string `yaml:"alias"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	ReadOnly bool   `yaml:"read_only"`
}

// DSN renders the libpq key/value connection string DuckDB's postgres
// extension expects. Values are quoted when libpq would misread them.
func (p PostgresAttachment) DSN() string {
	parts := []string{"host=" + dsnValue(p.Host)}
	if p.Port != 0 {
		parts = append(parts, "port="+strconv.Itoa(p.Port))
	}
	parts = append(parts, "dbname="+dsnValue(p.Database))
	if p.User != "" {
		parts = append(parts, "user="+dsnValue(p.User))
	}
	if p.Password != "" {
		parts = append(parts, "password="+dsnValue(p.Password))
	}
	if p.SSLMode != "" {
		parts = append(parts, "sslmode="+dsnValue(p.SSLMode))
	}
	return strings.Join(parts, " ")
}

// dsnValue single-quotes v, backslash-escaping quotes and backslashes, when
// it is empty or holds whitespace, a quote or a backslash.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n\r\v\f'\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// URL renders the same connection as a postgres:// URL.
func (p PostgresAttachment) URL() string {
	host := p.Host
	if p.Port != 0 {
		host += ":" + strconv.Itoa(p.Port)
	}
	u := url.URL{Scheme: "postgres", Host: host, Path: "/" + p.Database}
	if p.User != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.User, p.Password)
		} else {
			u.User = url.User(p.User)
		}
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String()
}

// SourceType names where a view's rows come from when it has no SQL body.
type SourceType string

const (
	SourceParquet  SourceType = "parquet"
	SourceCSV      SourceType = "csv"
	SourceJSON     SourceType = "json"
	SourceDelta    SourceType = "delta"
	SourceIceberg  SourceType = "iceberg"
	SourceDuckDB   SourceType = "duckdb"
	SourceSQLite   SourceType = "sqlite"
	SourcePostgres SourceType = "postgres"
)

// fileScan maps file-backed sources to their DuckDB table function.
var fileScan = map[SourceType]string{
	SourceParquet: "read_parquet",
	SourceCSV:     "read_csv_auto",
	SourceJSON:    "read_json_auto",
	SourceDelta:   "delta_scan",
	SourceIceberg: "iceberg_scan",
}

// View is one named query in the catalog. Exactly one of SQL, SQLFile,
// SQLTemplate or Source is set.
type View struct {
	Name        string                `yaml:"name"`
	Schema      string                `yaml:"schema"`
	SQL         string                `yaml:"sql"`
	SQLFile     *SQLFileRef           `yaml:"sql_file"`
	SQLTemplate *SQLTemplateRef       `yaml:"sql_template"`
	Source      SourceType            `yaml:"source"`
	URI         string                `yaml:"uri"`
	Database    string                `yaml:"database"`
	Table       string                `yaml:"table"`
	Description string                `yaml:"description"`
	Tags        []string              `yaml:"tags"`
	Columns     map[string]ColumnSpec `yaml:"columns"`

	// Body is the SQL read from SQLFile or rendered from SQLTemplate.
	Body string `yaml:"-"`
}

type SQLFileRef struct {
	Path string `yaml:"path"`
}

type SQLTemplateRef struct {
	Path      string         `yaml:"path"`
	Variables map[string]any `yaml:"variables"`
}

// ColumnSpec documents a view column and optionally masks it in query results.
type ColumnSpec struct {
	Description string   `yaml:"description"`
	Mask        MaskType `yaml:"mask,omitempty"`
}

// UnmarshalYAML accepts either a mapping or a plain description string:
//
//	columns:
//	  email: "Customer email"
//	  ssn:
//	    description: "Social security number"
//	    mask: redact
func (c *ColumnSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		c.Description = value.Value
		return nil
	}
	type plain ColumnSpec
	var p plain
	if err := value.Decode(&p); err != nil {
		return fmt.Errorf("decoding column spec: %w", err)
	}
	*c = ColumnSpec(p)
	return nil
}

// QualifiedName is the quoted schema.name of the view.
func (v View) QualifiedName() string {
	return QualifiedName(v.Schema, v.Name)
}

// Key identifies the view in lookups ("schema.name" or "name").
func (v View) Key() string {
	if v.Schema == "" {
		return v.Name
	}
	return v.Schema + "." + v.Name
}

// Query returns the SELECT statement that defines the view.
func (v View) Query() string {
	switch {
	case v.SQL != "":
		return strings.TrimSpace(v.SQL)
	case v.SQLFile != nil, v.SQLTemplate != nil:
		return strings.TrimSpace(v.Body)
	}
	if fn, ok := fileScan[v.Source]; ok {
		return fmt.Sprintf("SELECT * FROM %s(%s)", fn, QuoteLiteral(v.URI))
	}
	return fmt.Sprintf("SELECT * FROM %s.%s", QuoteIdentifier(v.Database), v.tableRef())
}

// tableRef quotes each dot-separated part of Table (e.g. public.orders).
func (v View) tableRef() string {
	parts := strings.Split(v.Table, ".")
	for i, p := range parts {
		parts[i] = QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// Masks collects the masked columns declared on the view.
func (v View) Masks() ColumnMasks {
	var masks ColumnMasks
	for col, spec := range v.Columns {
		if spec.Mask == "" {
			continue
		}
		if masks == nil {
			masks = make(ColumnMasks)
		}
		masks[col] = spec.Mask
	}
	return masks
}

// DatabasePath returns the configured database, defaulting to DefaultDatabase.
func (c *Catalog) DatabasePath() string {
	if c.DuckDB.Database == "" {
		return DefaultDatabase
	}
	return c.DuckDB.Database
}

// FindView looks a view up by "schema.name" or bare name.
func (c *Catalog) FindView(key string) (View, bool) {
	for _, v := range c.Views {
		if v.Key() == key {
			return v, true
		}
	}
	return View{}, false
}

// Masks merges every view's column masks. Column masks apply by name across
// all query results, so two views masking the same column differently keep
// the first declaration.
func (c *Catalog) Masks() ColumnMasks {
	masks := make(ColumnMasks)
	for _, v := range c.Views {
		for col, m := range v.Masks() {
			if _, seen := masks[col]; !seen {
				masks[col] = m
			}
		}
	}
	return masks
}
