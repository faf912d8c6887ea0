package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/duckalog/duckalog/internal/audit"
	"github.com/duckalog/duckalog/internal/core/domain"
	"github.com/duckalog/duckalog/internal/core/port"
	"github.com/duckalog/duckalog/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExplorer struct {
	views   []port.ViewInfo
	detail  *port.ViewDetail
	profile *domain.ViewProfile
	err     error
}

func (s *stubExplorer) ListSchemas(context.Context) ([]port.SchemaInfo, error) {
	return []port.SchemaInfo{{Name: "main", ViewCount: len(s.views)}}, s.err
}

func (s *stubExplorer) ListViews(context.Context) ([]port.ViewInfo, error) {
	return s.views, s.err
}

func (s *stubExplorer) DescribeView(context.Context, string, string) (*port.ViewDetail, error) {
	return s.detail, s.err
}

func (s *stubExplorer) ProfileView(context.Context, string, string) (*domain.ViewProfile, error) {
	return s.profile, s.err
}

type stubExecutor struct {
	result *port.QueryResult
	err    error
	called bool
}

func (s *stubExecutor) Execute(context.Context, string) (*port.QueryResult, error) {
	s.called = true
	return s.result, s.err
}

func newTestRouter(explorer *stubExplorer, executor *stubExecutor, opts Options) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	query := service.NewQueryService(domain.NewSQLValidator(), executor, audit.NoopAuditor{}, logger, nil, nil, nil)
	h := NewHandler(service.NewExplorerService(explorer), query, logger, "test")
	return NewRouter(h, opts)
}

func defaultExplorer() *stubExplorer {
	return &stubExplorer{
		views: []port.ViewInfo{
			{Schema: "main", Name: "orders", Type: "VIEW", ColumnCount: 2, Comment: "All orders", Tags: []string{"sales"}},
		},
		detail: &port.ViewDetail{
			Schema: "main", Name: "orders", Type: "VIEW", Comment: "All orders",
			Definition: "CREATE VIEW orders AS SELECT 1",
			Columns: []port.ColumnInfo{
				{Name: "id", DataType: "BIGINT"},
				{Name: "email", DataType: "VARCHAR", IsNullable: true, Mask: domain.MaskRedact},
			},
		},
		profile: &domain.ViewProfile{
			Schema: "main", Name: "orders", RowCount: 42,
			Columns: []domain.ColumnProfile{{Name: "id", Type: "BIGINT", ApproxDistinct: 42, Cardinality: domain.CardinalityUnique}},
		},
	}
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestRouter(defaultExplorer(), &stubExecutor{}, Options{BearerToken: "tok"})
	rec := do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"test"}`, rec.Body.String())
}

func TestViewsPage(t *testing.T) {
	h := newTestRouter(defaultExplorer(), &stubExecutor{}, Options{})
	rec := do(t, h, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, `href="/views/main/orders"`)
	assert.Contains(t, body, "All orders")
	assert.Contains(t, body, "sales")
}

func TestViewPage(t *testing.T) {
	h := newTestRouter(defaultExplorer(), &stubExecutor{}, Options{})
	rec := do(t, h, http.MethodGet, "/views/main/orders", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "BIGINT")
	assert.Contains(t, body, "redact")
	assert.Contains(t, body, "CREATE VIEW orders AS SELECT 1")
	assert.Contains(t, body, "/views/main/orders/profile")
}

func TestViewPage_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"ambiguous", service.ErrAmbiguousView, http.StatusConflict},
		{"other", errors.New("db closed"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&stubExplorer{err: tt.err}, &stubExecutor{}, Options{})
			rec := do(t, h, http.MethodGet, "/views/main/ghost", "", "")
			assert.Equal(t, tt.want, rec.Code)

			rec = do(t, h, http.MethodGet, "/api/views/main/ghost", "", "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestProfilePage(t *testing.T) {
	h := newTestRouter(defaultExplorer(), &stubExecutor{}, Options{})
	rec := do(t, h, http.MethodGet, "/views/main/orders/profile", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "42 row(s)")
	assert.Contains(t, rec.Body.String(), "unique")
}

func TestQueryPage_Prefill(t *testing.T) {
	h := newTestRouter(defaultExplorer(), &stubExecutor{}, Options{})
	rec := do(t, h, http.MethodGet, "/query?sql="+url.QueryEscape("SELECT 42"), "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SELECT 42</textarea>")
}

func TestQueryRun(t *testing.T) {
	exec := &stubExecutor{result: &port.QueryResult{
		Columns: []string{"id", "note"},
		Rows:    []map[string]any{{"id": 1, "note": nil}},
	}}
	h := newTestRouter(defaultExplorer(), exec, Options{})

	form := url.Values{"sql": {"SELECT id, note FROM orders"}}.Encode()
	rec := do(t, h, http.MethodPost, "/query", "application/x-www-form-urlencoded", form)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, exec.called)
	body := rec.Body.String()
	assert.Contains(t, body, "1 row(s)")
	assert.Contains(t, body, "<td>NULL</td>")
}

func TestQueryRun_RejectedNeverExecutes(t *testing.T) {
	exec := &stubExecutor{}
	h := newTestRouter(defaultExplorer(), exec, Options{})

	form := url.Values{"sql": {"DELETE FROM orders"}}.Encode()
	rec := do(t, h, http.MethodPost, "/query", "application/x-www-form-urlencoded", form)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, exec.called)
	body := rec.Body.String()
	assert.Contains(t, body, "<h2>Query rejected</h2>")
	assert.Contains(t, body, "<pre>Query contains forbidden keyword: DELETE. Only SELECT statements are allowed.</pre>")
	assert.NotContains(t, body, "Query rejected: ")
}

func TestAPIViews(t *testing.T) {
	h := newTestRouter(defaultExplorer(), &stubExecutor{}, Options{})
	rec := do(t, h, http.MethodGet, "/api/views", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []port.ViewInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "orders", views[0].Name)
}

func TestAPIViews_EmptyIsArray(t *testing.T) {
	h := newTestRouter(&stubExplorer{}, &stubExecutor{}, Options{})
	rec := do(t, h, http.MethodGet, "/api/views", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAPISchemas(t *testing.T) {
	h := newTestRouter(defaultExplorer(), &stubExecutor{}, Options{})
	rec := do(t, h, http.MethodGet, "/api/schemas", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"name":"main","view_count":1}]`, rec.Body.String())
}

func TestAPIQuery(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		exec     *stubExecutor
		want     int
		contains string
		called   bool
	}{
		{
			name:     "ok",
			body:     `{"sql":"SELECT 1 AS one"}`,
			exec:     &stubExecutor{result: &port.QueryResult{Columns: []string{"one"}, Rows: []map[string]any{{"one": 1}}}},
			want:     http.StatusOK,
			contains: `"rows":[{"one":1}]`,
			called:   true,
		},
		{
			name:     "rejected",
			body:     `{"sql":"SELECT 1; DROP TABLE x"}`,
			exec:     &stubExecutor{},
			want:     http.StatusBadRequest,
			contains: `"rejected":true`,
		},
		{
			name:     "execution error",
			body:     `{"sql":"SELECT * FROM missing"}`,
			exec:     &stubExecutor{err: errors.New("Catalog Error: missing")},
			want:     http.StatusUnprocessableEntity,
			contains: "Catalog Error: missing",
			called:   true,
		},
		{
			name:     "timeout",
			body:     `{"sql":"SELECT 1"}`,
			exec:     &stubExecutor{err: context.DeadlineExceeded},
			want:     http.StatusGatewayTimeout,
			contains: "deadline exceeded",
			called:   true,
		},
		{
			name:     "bad json",
			body:     `{"sql":`,
			exec:     &stubExecutor{},
			want:     http.StatusBadRequest,
			contains: "invalid request body",
		},
		{
			name:     "empty result rows",
			body:     `{"sql":"SELECT 1 WHERE false"}`,
			exec:     &stubExecutor{result: &port.QueryResult{Columns: []string{"x"}}},
			want:     http.StatusOK,
			contains: `"rows":[]`,
			called:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(defaultExplorer(), tt.exec, Options{})
			rec := do(t, h, http.MethodPost, "/api/query", "application/json", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
			assert.Equal(t, tt.called, tt.exec.called)
		})
	}
}

func TestAPICheck(t *testing.T) {
	h := newTestRouter(defaultExplorer(), &stubExecutor{}, Options{})

	rec := do(t, h, http.MethodPost, "/api/check", "application/json", `{"sql":"SELECT  1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid":true,"sanitized":"SELECT 1"}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/check", "application/json", `{"sql":"UPDATE t SET a = 1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid":false,"reason":"Query contains forbidden keyword: SET. Only SELECT statements are allowed.","sanitized":"UPDATE t SET a = 1"}`, rec.Body.String())
}

func TestRouter_BearerToken(t *testing.T) {
	h := newTestRouter(defaultExplorer(), &stubExecutor{}, Options{BearerToken: "tok"})

	rec := do(t, h, http.MethodGet, "/api/views", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/views", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_CORS(t *testing.T) {
	h := newTestRouter(defaultExplorer(), &stubExecutor{}, Options{CORSOrigins: []string{"https://notebook.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/api/views", nil)
	req.Header.Set("Origin", "https://notebook.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://notebook.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/views", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
