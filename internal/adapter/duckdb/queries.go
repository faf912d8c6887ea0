package duckdb

// Catalog metadata comes from DuckDB's duckdb_* table functions, which
// expose comments, tags and view definitions that information_schema lacks.
// Attached databases are excluded: only objects in the catalog file count.

const queryListSchemas = `
	SELECT schema_name, count(*)::INTEGER
	FROM (
		SELECT schema_name FROM duckdb_views()
		WHERE database_name = current_database() AND NOT internal AND NOT temporary
		UNION ALL
		SELECT schema_name FROM duckdb_tables()
		WHERE database_name = current_database() AND NOT internal AND NOT temporary
	)
	GROUP BY schema_name
	ORDER BY schema_name`

const queryListRelations = `
	SELECT schema_name, name, type, column_count, comment, tags
	FROM (
		SELECT schema_name, view_name AS name, 'VIEW' AS type,
			column_count::INTEGER AS column_count, COALESCE(comment, '') AS comment,
			map_keys(tags) AS tags
		FROM duckdb_views()
		WHERE database_name = current_database() AND NOT internal AND NOT temporary
		UNION ALL
		SELECT schema_name, table_name, 'BASE TABLE',
			column_count::INTEGER, COALESCE(comment, ''), map_keys(tags)
		FROM duckdb_tables()
		WHERE database_name = current_database() AND NOT internal AND NOT temporary
	)
	ORDER BY schema_name, name`

// queryRelation: ? = schema, ? = name (twice, once per branch).
const queryRelation = `
	SELECT type, comment, definition FROM (
		SELECT 'VIEW' AS type, COALESCE(comment, '') AS comment, COALESCE(sql, '') AS definition
		FROM duckdb_views()
		WHERE database_name = current_database() AND schema_name = ? AND view_name = ?
		UNION ALL
		SELECT 'BASE TABLE', COALESCE(comment, ''), ''
		FROM duckdb_tables()
		WHERE database_name = current_database() AND schema_name = ? AND table_name = ?
	)
	LIMIT 1`

// queryColumns: ? = schema, ? = relation name.
const queryColumns = `
	SELECT column_name, data_type, is_nullable, COALESCE(comment, '')
	FROM duckdb_columns()
	WHERE database_name = current_database() AND schema_name = ? AND table_name = ?
	ORDER BY column_index`
