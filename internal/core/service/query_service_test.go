package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/duckalog/duckalog/internal/core/domain"
	"github.com/duckalog/duckalog/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- mock QueryExecutor ---

type mockExecutor struct {
	executeCalled bool
	lastSQL       string
	result        *port.QueryResult
	err           error
}

func (m *mockExecutor) Execute(_ context.Context, sql string) (*port.QueryResult, error) {
	m.executeCalled = true
	m.lastSQL = sql
	return m.result, m.err
}

// --- recording QueryAuditor ---

type recordingAuditor struct {
	entries []port.AuditEntry
}

func (r *recordingAuditor) Record(_ context.Context, e port.AuditEntry) { r.entries = append(r.entries, e) }
func (r *recordingAuditor) Close() error                                { return nil }

// --- counting Instrumentation ---

type countingInst struct {
	port.NoopInstrumentation
	queries    int
	errors     int
	rejections []string
}

func (c *countingInst) IncrementQueryCount(context.Context)  { c.queries++ }
func (c *countingInst) IncrementQueryErrors(context.Context) { c.errors++ }
func (c *countingInst) IncrementQueryRejections(_ context.Context, reason string) {
	c.rejections = append(c.rejections, reason)
}

func newTestService(exec port.QueryExecutor, masks domain.ColumnMasks) (*QueryService, *recordingAuditor, *countingInst) {
	aud := &recordingAuditor{}
	inst := &countingInst{}
	svc := NewQueryService(domain.NewSQLValidator(), exec, aud, testLogger(), masks, nil, inst)
	return svc, aud, inst
}

// --- tests ---

func TestQueryService_ValidSelect(t *testing.T) {
	exec := &mockExecutor{
		result: &port.QueryResult{
			Columns: []string{"id", "name"},
			Rows:    []map[string]any{{"id": 1, "name": "alice"}},
		},
	}
	svc, aud, inst := newTestService(exec, nil)

	ctx := WithSource(context.Background(), "ui")
	res, err := svc.Execute(ctx, "SELECT id, name FROM users")
	require.NoError(t, err)
	assert.True(t, exec.executeCalled)
	assert.Equal(t, "SELECT id, name FROM users", exec.lastSQL)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "alice", res.Rows[0]["name"])

	require.Len(t, aud.entries, 1)
	assert.Equal(t, "ui", aud.entries[0].Source)
	assert.False(t, aud.entries[0].Rejected)
	assert.Equal(t, 1, aud.entries[0].RowsReturned)
	assert.Equal(t, 1, inst.queries)
}

func TestQueryService_RejectedNeverReachesExecutor(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		reason string
		kind   string
	}{
		{"insert", "INSERT INTO users (name) VALUES ('bob')", "Query contains forbidden keyword: INSERT. Only SELECT statements are allowed.", "forbidden_keyword"},
		{"drop", "DROP TABLE users", "Query contains forbidden keyword: DROP. Only SELECT statements are allowed.", "forbidden_keyword"},
		{"empty", "", "Empty SQL query", "empty"},
		{"stacked", "SELECT 1; SELECT 2", "Query contains potentially dangerous syntax (comments or multiple statements)", "dangerous_syntax"},
		{"file read", "SELECT read_file('x')", "Query contains potentially dangerous function: READ_FILE", "dangerous_function"},
		{"not select", "VALUES (1)", "Query must start with SELECT or WITH (Common Table Expression)", "not_read_only"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &mockExecutor{}
			svc, aud, inst := newTestService(exec, nil)

			_, err := svc.Execute(context.Background(), tt.sql)
			require.Error(t, err)
			assert.False(t, exec.executeCalled, "executor should not be called for rejected queries")
			assert.True(t, IsRejected(err))
			assert.Equal(t, tt.reason, err.Error())
			assert.Equal(t, []string{tt.kind}, inst.rejections)

			require.Len(t, aud.entries, 1)
			assert.True(t, aud.entries[0].Rejected)
		})
	}
}

func TestQueryService_ExecutorError(t *testing.T) {
	exec := &mockExecutor{err: fmt.Errorf("catalog error: table missing")}
	svc, aud, inst := newTestService(exec, nil)

	_, err := svc.Execute(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.False(t, IsRejected(err))
	assert.Contains(t, err.Error(), "table missing")
	assert.Equal(t, 1, inst.errors)
	require.Len(t, aud.entries, 1)
	assert.Error(t, aud.entries[0].Err)
}

func TestQueryService_NilResultIsEmpty(t *testing.T) {
	svc, _, _ := newTestService(&mockExecutor{}, nil)
	res, err := svc.Execute(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestQueryService_WithMasks(t *testing.T) {
	exec := &mockExecutor{
		result: &port.QueryResult{
			Columns: []string{"id", "contact", "name"},
			Rows: []map[string]any{
				{"id": 1, "contact": "alice@example.com", "name": "Alice"},
				{"id": 2, "contact": "bob@example.com", "name": "Bob"},
			},
		},
	}
	svc, _, _ := newTestService(exec, domain.ColumnMasks{"email": domain.MaskRedact})

	res, err := svc.Execute(context.Background(), "SELECT id, email AS contact, name FROM customers")
	require.NoError(t, err)
	assert.Equal(t, "***", res.Rows[0]["contact"])
	assert.Equal(t, "***", res.Rows[1]["contact"])
	assert.Equal(t, "Alice", res.Rows[0]["name"])
}

func TestQueryService_StrictParse(t *testing.T) {
	exec := &mockExecutor{}
	validator := domain.NewChainValidator(domain.NewSQLValidator(), domain.NewParseValidator())
	svc := NewQueryService(validator, exec, &recordingAuditor{}, testLogger(), nil, nil, nil)

	_, err := svc.Execute(context.Background(), "SELECT FROM FROM")
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.True(t, errors.Is(err, domain.ErrParseFailed))
	assert.False(t, exec.executeCalled)
}

func TestQueryService_Validate(t *testing.T) {
	svc, aud, _ := newTestService(&mockExecutor{}, nil)

	assert.NoError(t, svc.Validate("SELECT 1"))
	err := svc.Validate("DELETE FROM t")
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Empty(t, aud.entries, "Validate does not audit")
}
