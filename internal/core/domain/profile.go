package domain

// CardinalityClass describes the distribution shape of a column's values.
type CardinalityClass string

const (
	CardinalityUnique          CardinalityClass = "unique"
	CardinalityNearUnique      CardinalityClass = "near_unique"
	CardinalityHighCardinality CardinalityClass = "high_cardinality"
	CardinalityLowCardinality  CardinalityClass = "low_cardinality"
	CardinalityEnumLike        CardinalityClass = "enum_like"
)

const (
	nearUniqueRatio = 0.9
	enumLikeMax     = 20
	lowCardMax      = 200
)

// ClassifyCardinality buckets a column by its distinct count relative to the
// row count. DuckDB's SUMMARIZE reports an approximate distinct count that can
// exceed the row count slightly, so anything at or above it counts as unique.
func ClassifyCardinality(distinct, rows int64) CardinalityClass {
	if rows > 0 {
		if distinct >= rows {
			return CardinalityUnique
		}
		if float64(distinct)/float64(rows) >= nearUniqueRatio {
			return CardinalityNearUnique
		}
	}
	switch {
	case distinct <= enumLikeMax:
		return CardinalityEnumLike
	case distinct <= lowCardMax:
		return CardinalityLowCardinality
	default:
		return CardinalityHighCardinality
	}
}

// ColumnProfile is one row of a view profile.
type ColumnProfile struct {
	Name           string           `json:"name"`
	Type           string           `json:"type"`
	Min            string           `json:"min,omitempty"`
	Max            string           `json:"max,omitempty"`
	ApproxDistinct int64            `json:"approx_distinct"`
	NullPercent    float64          `json:"null_percent"`
	Cardinality    CardinalityClass `json:"cardinality"`
}

// ViewProfile summarises the data behind a catalog view.
type ViewProfile struct {
	Schema   string          `json:"schema"`
	Name     string          `json:"name"`
	RowCount int64           `json:"row_count"`
	Columns  []ColumnProfile `json:"columns"`
}
