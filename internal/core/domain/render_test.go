package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Order(t *testing.T) {
	t.Parallel()
	stmts := Render(validCatalog(), RenderOptions{})

	var kinds []StatementKind
	for _, s := range stmts {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []StatementKind{
		StmtInstall, StmtLoad,
		StmtSetting, StmtSetting,
		StmtSecret,
		StmtAttach, StmtAttach,
		StmtSchema,
		StmtView, StmtView, StmtView, StmtView,
	}, kinds)
}

func TestRender_Statements(t *testing.T) {
	t.Parallel()
	stmts := Render(validCatalog(), RenderOptions{})
	sqls := make([]string, len(stmts))
	for i, s := range stmts {
		sqls[i] = s.SQL
	}

	assert.Equal(t, []string{
		"INSTALL httpfs",
		"LOAD httpfs",
		"SET memory_limit = '1GB'",
		"SET threads = 4",
		"CREATE OR REPLACE SECRET s3_main (TYPE s3, KEY_ID 'AKIA', SECRET 'shh', REGION 'eu-west-1')",
		`ATTACH IF NOT EXISTS 'legacy.db' AS "legacy" (TYPE SQLITE, READ_ONLY)`,
		`ATTACH IF NOT EXISTS 'host=db port=5432 dbname=crm user=ro password=pw' AS "crm" (TYPE POSTGRES)`,
		`CREATE SCHEMA IF NOT EXISTS "raw"`,
		`CREATE OR REPLACE VIEW "orders" AS SELECT * FROM read_parquet('orders.parquet')`,
		`CREATE OR REPLACE VIEW "raw"."events" AS SELECT * FROM read_parquet('s3://bucket/events/*.parquet')`,
		`CREATE OR REPLACE VIEW "accounts" AS SELECT * FROM "crm"."public"."accounts"`,
		`CREATE OR REPLACE VIEW "users" AS SELECT * FROM "legacy"."users"`,
	}, sqls)
}

func TestRender_RedactSecrets(t *testing.T) {
	t.Parallel()
	script := Script(Render(validCatalog(), RenderOptions{RedactSecrets: true}))

	assert.NotContains(t, script, "shh")
	assert.NotContains(t, script, "AKIA")
	assert.NotContains(t, script, "password=pw")
	assert.Contains(t, script, "password=***")
}

func TestRender_PragmaAndTrailingSemicolon(t *testing.T) {
	t.Parallel()
	c := &Catalog{
		DuckDB: DuckDBConfig{Pragmas: []string{"PRAGMA enable_progress_bar;"}},
		Views:  []View{{Name: "v", SQL: "SELECT 1;"}},
	}
	stmts := Render(c, RenderOptions{})
	require.Len(t, stmts, 2)
	assert.Equal(t, "PRAGMA enable_progress_bar", stmts[0].SQL)
	assert.Equal(t, `CREATE OR REPLACE VIEW "v" AS SELECT 1`, stmts[1].SQL)
}

func TestScript(t *testing.T) {
	t.Parallel()
	script := Script([]Statement{{SQL: "LOAD httpfs"}, {SQL: "SELECT 1"}})
	assert.Equal(t, "LOAD httpfs;\nSELECT 1;\n", script)
	assert.Equal(t, 2, strings.Count(script, ";"))
}

func TestRenderTemplate(t *testing.T) {
	t.Parallel()
	out, err := RenderTemplate("SELECT * FROM {{ table }} WHERE year = {{year}} AND region = '{{ region }}'",
		map[string]any{"table": "sales", "year": 2024, "region": "EU", "unused": true})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM sales WHERE year = 2024 AND region = 'EU'", out)
}

func TestRenderTemplate_Missing(t *testing.T) {
	t.Parallel()
	_, err := RenderTemplate("SELECT {{ a }}, {{ b }}, {{ a }}", map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplateVariable)
	assert.Contains(t, err.Error(), "a, b")
}

func TestClassifyCardinality(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		distinct int64
		rows     int64
		want     CardinalityClass
	}{
		{"all unique", 1000, 1000, CardinalityUnique},
		{"approx above rows", 1012, 1000, CardinalityUnique},
		{"near unique", 950, 1000, CardinalityNearUnique},
		{"high", 500, 1000, CardinalityHighCardinality},
		{"enum like", 5, 1000, CardinalityEnumLike},
		{"enum boundary", 20, 1000, CardinalityEnumLike},
		{"low", 50, 1000, CardinalityLowCardinality},
		{"low boundary", 200, 1000, CardinalityLowCardinality},
		{"empty", 0, 0, CardinalityEnumLike},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ClassifyCardinality(tt.distinct, tt.rows))
		})
	}
}

func TestSessionStatements(t *testing.T) {
	t.Parallel()
	session := SessionStatements(Render(validCatalog(), RenderOptions{}))
	require.Len(t, session, 7)
	for _, s := range session {
		assert.NotEqual(t, StmtSchema, s.Kind)
		assert.NotEqual(t, StmtView, s.Kind)
	}
	assert.Nil(t, SessionStatements([]Statement{{Kind: StmtView}}))
}

func TestRender_PostgresDSNQuotedInsideLiteral(t *testing.T) {
	t.Parallel()
	c := &Catalog{
		Version: 1,
		Attachments: Attachments{
			Postgres: []PostgresAttachment{{Alias: "crm", Host: "db", Database: "my db", User: "ro", Password: "it's"}},
		},
		Views: []View{{Name: "v", SQL: "SELECT 1"}},
	}

	stmts := Render(c, RenderOptions{})
	require.NotEmpty(t, stmts)
	assert.Equal(t,
		`ATTACH IF NOT EXISTS 'host=db dbname=''my db'' user=ro password=''it\''s''' AS "crm" (TYPE POSTGRES)`,
		stmts[0].SQL)

	redacted := Render(c, RenderOptions{RedactSecrets: true})
	assert.NotContains(t, redacted[0].SQL, `it\''s`)
	assert.Contains(t, redacted[0].SQL, "password=***")
}
