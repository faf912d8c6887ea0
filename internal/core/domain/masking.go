package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// MaskType is a column masking strategy declared on a catalog view column.
type MaskType string

const (
	MaskRedact  MaskType = "redact"
	MaskHash    MaskType = "hash"
	MaskPartial MaskType = "partial"
	MaskNull    MaskType = "null"
)

// Valid reports whether m is a known strategy. The empty value means no mask.
func (m MaskType) Valid() bool {
	switch m {
	case "", MaskRedact, MaskHash, MaskPartial, MaskNull:
		return true
	}
	return false
}

// partialVisible is how many trailing runes MaskPartial keeps.
const partialVisible = 4

// ApplyMask transforms a single value. nil stays nil for every strategy.
func ApplyMask(value any, m MaskType) any {
	if value == nil {
		return nil
	}
	switch m {
	case MaskRedact:
		return "***"
	case MaskHash:
		sum := sha256.Sum256([]byte(fmt.Sprint(value)))
		return hex.EncodeToString(sum[:])
	case MaskPartial:
		runes := []rune(fmt.Sprint(value))
		if len(runes) <= partialVisible {
			return "***" + string(runes)
		}
		hidden := len(runes) - partialVisible
		return strings.Repeat("*", hidden) + string(runes[hidden:])
	case MaskNull:
		return nil
	default:
		return value
	}
}

// ColumnMasks maps result column names to the mask applied to them.
type ColumnMasks map[string]MaskType

// ForQuery returns the masks that apply to the result of sql. A masked column
// selected under an alias ("email AS contact") keeps its mask under the alias.
func (cm ColumnMasks) ForQuery(sql string) ColumnMasks {
	if len(cm) == 0 {
		return nil
	}
	out := make(ColumnMasks, len(cm))
	for col, m := range cm {
		out[col] = m
	}
	for col, alias := range ExtractAliasMap(sql) {
		if m, ok := cm[col]; ok {
			out[alias] = m
		}
	}
	return out
}

// Apply masks rows in place.
func (cm ColumnMasks) Apply(rows []map[string]any) {
	if len(cm) == 0 {
		return
	}
	for _, row := range rows {
		for col, m := range cm {
			if v, ok := row[col]; ok {
				row[col] = ApplyMask(v, m)
			}
		}
	}
}

// ExtractAliasMap returns column name → alias for each plain column reference
// selected with AS in the top-level SELECT of sql. Expressions are skipped, and
// an unparsable statement yields an empty map.
func ExtractAliasMap(sql string) map[string]string {
	aliases := make(map[string]string)

	tree, err := pg_query.Parse(sql)
	if err != nil || len(tree.GetStmts()) == 0 {
		return aliases
	}
	sel := tree.GetStmts()[0].GetStmt().GetSelectStmt()
	if sel == nil {
		return aliases
	}

	for _, target := range sel.GetTargetList() {
		rt := target.GetResTarget()
		if rt == nil || rt.GetName() == "" {
			continue
		}
		ref := rt.GetVal().GetColumnRef()
		if ref == nil || len(ref.GetFields()) == 0 {
			continue
		}
		fields := ref.GetFields()
		col := fields[len(fields)-1].GetString_().GetSval()
		if col != "" && col != rt.GetName() {
			aliases[col] = rt.GetName()
		}
	}
	return aliases
}
