package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidator(t *testing.T) {
	t.Parallel()
	v := NewParseValidator()

	tests := []struct {
		name    string
		sql     string
		wantErr error
	}{
		{"simple select", "SELECT 1", nil},
		{"cte", "WITH t AS (SELECT 1 AS x) SELECT x FROM t", nil},
		{"join", "SELECT a.id FROM a JOIN b ON a.id = b.a_id", nil},
		{"empty", "   ", ErrEmptyQuery},
		{"insert", "INSERT INTO t VALUES (1)", ErrNotAllowed},
		{"explain", "EXPLAIN SELECT 1", ErrNotAllowed},
		{"two statements", "SELECT 1; SELECT 2", ErrMultiStatement},
		{"garbage", "SELEC FROM WHERE", ErrParseFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate(tt.sql)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

type stubValidator struct {
	err    error
	called bool
}

func (s *stubValidator) Validate(string) error {
	s.called = true
	return s.err
}

func TestChainValidator_GateRejectionIsVerbatim(t *testing.T) {
	t.Parallel()
	strict := &stubValidator{}
	chain := NewChainValidator(NewSQLValidator(), strict)

	err := chain.Validate("DROP TABLE t")
	require.Error(t, err)
	assert.Equal(t, "Query contains forbidden keyword: DROP. Only SELECT statements are allowed.", err.Error())
	assert.False(t, strict.called, "strict validators run only after the gate accepts")
}

func TestChainValidator_StrictRejectionIsPrefixed(t *testing.T) {
	t.Parallel()
	strict := &stubValidator{err: errors.New("boom")}
	chain := NewChainValidator(NewSQLValidator(), strict)

	err := chain.Validate("SELECT 1")
	require.Error(t, err)
	assert.Equal(t, "strict parse: boom", err.Error())
	assert.True(t, strict.called)
}

func TestChainValidator_GateOnly(t *testing.T) {
	t.Parallel()
	chain := NewChainValidator(NewSQLValidator())
	assert.NoError(t, chain.Validate("SELECT 1"))
	assert.Error(t, chain.Validate(""))
}

func TestChainValidator_WithParser(t *testing.T) {
	t.Parallel()
	chain := NewChainValidator(NewSQLValidator(), NewParseValidator())

	assert.NoError(t, chain.Validate("SELECT id FROM orders WHERE total > 10"))

	err := chain.Validate("SELECT FROM FROM")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParseFailed)
}
