package domain

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var (
	ErrNotAllowed     = errors.New("only SELECT queries are allowed")
	ErrMultiStatement = errors.New("multiple statements are not allowed")
	ErrParseFailed    = errors.New("failed to parse SQL")
)

// ParseValidator validates SQL statements using PostgreSQL's parser.
// DuckDB's dialect is close enough that a single plain SELECT parses; DuckDB-only
// syntax (FROM-first, PIVOT, ...) is rejected, which is why it is opt-in.
type ParseValidator struct{}

func NewParseValidator() *ParseValidator {
	return &ParseValidator{}
}

// Validate parses the SQL and rejects anything that isn't a single SELECT statement.
func (v *ParseValidator) Validate(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return ErrEmptyQuery
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	if len(tree.Stmts) == 0 {
		return ErrEmptyQuery
	}

	if len(tree.Stmts) > 1 {
		return ErrMultiStatement
	}

	stmt := tree.Stmts[0].Stmt
	if stmt == nil {
		return ErrEmptyQuery
	}

	if _, ok := stmt.Node.(*pg_query.Node_SelectStmt); !ok {
		return ErrNotAllowed
	}
	return nil
}

// Validator is satisfied by SQLValidator and ParseValidator.
type Validator interface {
	Validate(sql string) error
}

// ChainValidator runs validators in order and stops at the first rejection.
// The first validator's error is returned unwrapped so its reason reaches the
// user verbatim; later ones are prefixed with "strict parse".
type ChainValidator struct {
	gate   Validator
	strict []Validator
}

func NewChainValidator(gate Validator, strict ...Validator) *ChainValidator {
	return &ChainValidator{gate: gate, strict: strict}
}

func (c *ChainValidator) Validate(sql string) error {
	if err := c.gate.Validate(sql); err != nil {
		return err
	}
	for _, v := range c.strict {
		if err := v.Validate(sql); err != nil {
			return fmt.Errorf("strict parse: %w", err)
		}
	}
	return nil
}
