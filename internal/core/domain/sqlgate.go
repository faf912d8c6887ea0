package domain

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var (
	ErrEmptyQuery        = errors.New("empty query")
	ErrForbiddenKeyword  = errors.New("forbidden keyword")
	ErrNotReadOnly       = errors.New("query is not a SELECT or WITH statement")
	ErrDangerousSyntax   = errors.New("dangerous syntax")
	ErrDangerousFunction = errors.New("dangerous function")
	ErrNotFound          = errors.New("not found")
)

// forbiddenKeywords are statement keywords that can mutate the catalog,
// its schema, the session or the files behind it.
var forbiddenKeywords = []string{
	// data modification
	"INSERT", "UPDATE", "DELETE",
	// schema
	"CREATE", "ALTER", "DROP", "TRUNCATE",
	// transactions
	"BEGIN", "COMMIT", "ROLLBACK", "SAVEPOINT",
	// privileges
	"GRANT", "REVOKE",
	// session and introspection
	"SET", "SHOW", "DESCRIBE", "EXPLAIN", "PRAGMA",
	// engine file and extension operations
	"ATTACH", "DETACH", "VACUUM", "REINDEX", "ANALYZE",
	"COPY", "IMPORT", "EXPORT", "INSTALL", "LOAD", "UNINSTALL",
}

// dangerousFunctions can reach the filesystem or load native code.
var dangerousFunctions = []string{
	"LOAD_EXTENSION",
	"READ_FILE",
	"WRITE_FILE",
	"SCAN_PARQUET",
	"SCAN_CSV",
}

var (
	whitespaceRe      = regexp.MustCompile(`\s+`)
	dangerousSyntaxRe = regexp.MustCompile(`(?s)--|/\*|\*/|;.*SELECT|SELECT.*;`)
	lineCommentRe     = regexp.MustCompile(`--[^\n]*`)
	blockCommentRe    = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

type keywordPattern struct {
	keyword string
	re      *regexp.Regexp
}

// RejectionError carries the user-facing reason a query was refused.
// Error returns the reason verbatim; Unwrap exposes the category sentinel.
type RejectionError struct {
	Kind   error
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

func (e *RejectionError) Unwrap() error { return e.Kind }

// SQLValidator is the read-only gate placed in front of the catalog database.
// It only admits a single SELECT or WITH statement. It is a keyword and shape
// heuristic, not a parser; the zero value is not usable, use NewSQLValidator.
type SQLValidator struct {
	keywords []keywordPattern
}

// NewSQLValidator compiles the keyword denylist. Keywords are checked in
// alphabetical order so the reported keyword is stable when several match.
// Word boundaries count any Unicode letter or digit as part of a word.
func NewSQLValidator() *SQLValidator {
	sorted := slices.Clone(forbiddenKeywords)
	slices.Sort(sorted)

	patterns := make([]keywordPattern, 0, len(sorted))
	for _, kw := range sorted {
		patterns = append(patterns, keywordPattern{
			keyword: kw,
			re:      regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(kw) + `([^\p{L}\p{N}_]|$)`),
		})
	}
	return &SQLValidator{keywords: patterns}
}

// Check classifies sql. It returns true and an empty reason for an allowed
// query, otherwise false and the reason to show the user.
func (v *SQLValidator) Check(sql string) (bool, string) {
	if err := v.Validate(sql); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// Validate returns nil for an allowed query or a *RejectionError.
func (v *SQLValidator) Validate(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return reject(ErrEmptyQuery, "Empty SQL query")
	}

	normalized := normalize(sql)

	for _, kp := range v.keywords {
		if kp.re.MatchString(normalized) {
			return reject(ErrForbiddenKeyword, fmt.Sprintf(
				"Query contains forbidden keyword: %s. Only SELECT statements are allowed.", kp.keyword))
		}
	}

	if !strings.HasPrefix(normalized, "SELECT") && !strings.HasPrefix(normalized, "WITH") {
		return reject(ErrNotReadOnly, "Query must start with SELECT or WITH (Common Table Expression)")
	}

	if dangerousSyntaxRe.MatchString(normalized) {
		return reject(ErrDangerousSyntax, "Query contains potentially dangerous syntax (comments or multiple statements)")
	}

	for _, fn := range dangerousFunctions {
		if strings.Contains(normalized, fn) {
			return reject(ErrDangerousFunction, fmt.Sprintf("Query contains potentially dangerous function: %s", fn))
		}
	}

	return nil
}

// Sanitize strips comments and collapses whitespace for display and logs.
// Its output must still go through Validate before execution.
func Sanitize(sql string) string {
	s := blockCommentRe.ReplaceAllString(sql, " ")
	s = lineCommentRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func normalize(sql string) string {
	return strings.ToUpper(strings.TrimSpace(whitespaceRe.ReplaceAllString(sql, " ")))
}

func reject(kind error, reason string) *RejectionError {
	return &RejectionError{Kind: kind, Reason: reason}
}
