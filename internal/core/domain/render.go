package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// StatementKind groups rendered statements by purpose.
type StatementKind string

const (
	StmtInstall StatementKind = "install"
	StmtLoad    StatementKind = "load"
	StmtSetting StatementKind = "setting"
	StmtPragma  StatementKind = "pragma"
	StmtSecret  StatementKind = "secret"
	StmtAttach  StatementKind = "attach"
	StmtSchema  StatementKind = "schema"
	StmtView    StatementKind = "view"
)

// Statement is one DDL statement applied while building a catalog.
type Statement struct {
	Kind   StatementKind `json:"kind"`
	Target string        `json:"target"`
	SQL    string        `json:"sql"`
}

// Session reports whether the statement configures the connection rather
// than defining catalog objects. Session statements are not persisted in
// the database file and must be replayed whenever it is reopened.
func (s Statement) Session() bool {
	return s.Kind != StmtSchema && s.Kind != StmtView
}

// SessionStatements filters stmts down to the ones that must be replayed on
// every open.
func SessionStatements(stmts []Statement) []Statement {
	var out []Statement
	for _, s := range stmts {
		if s.Session() {
			out = append(out, s)
		}
	}
	return out
}

// RenderOptions controls statement rendering.
type RenderOptions struct {
	// RedactSecrets replaces credentials so output is safe to print.
	RedactSecrets bool
}

// Render turns a validated catalog into the ordered statements that build it:
// extensions, settings, pragmas, secrets, attachments, schemas, then views in
// declaration order.
func Render(c *Catalog, opts RenderOptions) []Statement {
	var stmts []Statement

	for _, ext := range c.DuckDB.InstallExtensions {
		stmts = append(stmts, Statement{Kind: StmtInstall, Target: ext, SQL: "INSTALL " + ext})
	}
	for _, ext := range c.DuckDB.LoadExtensions {
		stmts = append(stmts, Statement{Kind: StmtLoad, Target: ext, SQL: "LOAD " + ext})
	}

	keys := make([]string, 0, len(c.DuckDB.Settings))
	for k := range c.DuckDB.Settings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		stmts = append(stmts, Statement{
			Kind:   StmtSetting,
			Target: k,
			SQL:    fmt.Sprintf("SET %s = %s", k, settingValue(c.DuckDB.Settings[k])),
		})
	}

	for _, p := range c.DuckDB.Pragmas {
		stmts = append(stmts, Statement{Kind: StmtPragma, SQL: strings.TrimSuffix(strings.TrimSpace(p), ";")})
	}

	for _, s := range c.Secrets {
		stmts = append(stmts, Statement{Kind: StmtSecret, Target: s.Name, SQL: s.CreateSQL(opts.RedactSecrets)})
	}

	for _, a := range c.Attachments.DuckDB {
		stmts = append(stmts, attachStatement(a.Alias, QuoteLiteral(a.Path), "", a.ReadOnly))
	}
	for _, a := range c.Attachments.SQLite {
		stmts = append(stmts, attachStatement(a.Alias, QuoteLiteral(a.Path), "SQLITE", a.ReadOnly))
	}
	for _, a := range c.Attachments.Postgres {
		dsn := QuoteLiteral(a.DSN())
		if opts.RedactSecrets && a.Password != "" {
			redactedAttachment := a
			redactedAttachment.Password = "***"
			dsn = QuoteLiteral(redactedAttachment.DSN())
		}
		stmts = append(stmts, attachStatement(a.Alias, dsn, "POSTGRES", a.ReadOnly))
	}

	seen := make(map[string]bool)
	for _, v := range c.Views {
		if v.Schema == "" || seen[v.Schema] {
			continue
		}
		seen[v.Schema] = true
		stmts = append(stmts, Statement{
			Kind:   StmtSchema,
			Target: v.Schema,
			SQL:    "CREATE SCHEMA IF NOT EXISTS " + QuoteIdentifier(v.Schema),
		})
	}

	for _, v := range c.Views {
		stmts = append(stmts, Statement{
			Kind:   StmtView,
			Target: v.Key(),
			SQL:    fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s", v.QualifiedName(), strings.TrimSuffix(v.Query(), ";")),
		})
	}

	return stmts
}

// Script joins statements into a runnable SQL script.
func Script(stmts []Statement) string {
	var b strings.Builder
	for _, s := range stmts {
		b.WriteString(s.SQL)
		b.WriteString(";\n")
	}
	return b.String()
}

func attachStatement(alias, target, dbType string, readOnly bool) Statement {
	var opts []string
	if dbType != "" {
		opts = append(opts, "TYPE "+dbType)
	}
	if readOnly {
		opts = append(opts, "READ_ONLY")
	}
	sql := fmt.Sprintf("ATTACH IF NOT EXISTS %s AS %s", target, QuoteIdentifier(alias))
	if len(opts) > 0 {
		sql += " (" + strings.Join(opts, ", ") + ")"
	}
	return Statement{Kind: StmtAttach, Target: alias, SQL: sql}
}

func settingValue(v any) string {
	switch t := v.(type) {
	case string:
		return QuoteLiteral(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return QuoteLiteral(fmt.Sprint(t))
	}
}
