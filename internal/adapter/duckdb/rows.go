package duckdb

import (
	"database/sql"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// scanRows reads rows into maps keyed by column name, keeping the column
// order separately. At most limit rows are read when limit > 0; truncated
// reports whether more were available.
func scanRows(rows *sql.Rows, limit int) (columns []string, out []map[string]any, truncated bool, err error) {
	columns, err = rows.Columns()
	if err != nil {
		return nil, nil, false, fmt.Errorf("reading columns: %w", err)
	}

	out = []map[string]any{}
	for rows.Next() {
		if limit > 0 && len(out) == limit {
			truncated = true
			break
		}
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, false, fmt.Errorf("reading row values: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, c := range columns {
			row[c] = normalize(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, false, fmt.Errorf("iterating rows: %w", err)
	}
	return columns, out, truncated, nil
}

// normalize turns driver values into types that encode cleanly as JSON and
// render sensibly as text.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, string, time.Time,
		int8, int16, int32, int64, int, uint8, uint16, uint32, uint64, float32, float64:
		return x
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		if len(x) == 16 {
			if id, err := uuid.FromBytes(x); err == nil {
				return id.String()
			}
		}
		return fmt.Sprintf("\\x%x", x)
	case *big.Int:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Len() == 16 && rv.Type().Elem().Kind() == reflect.Uint8 {
		var id uuid.UUID
		reflect.Copy(reflect.ValueOf(id[:]), rv)
		return id.String()
	}
	return v
}

// toFloat reads numeric summary values that DuckDB may return as decimals,
// strings or native numbers.
func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case int:
		return float64(x)
	case interface{ Float64() float64 }:
		return x.Float64()
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	case fmt.Stringer:
		f, _ := strconv.ParseFloat(x.String(), 64)
		return f
	}
	return 0
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case uint64:
		return int64(x)
	case *big.Int:
		return x.Int64()
	}
	return int64(toFloat(v))
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(normalize(v))
}
