package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/duckalog/duckalog/internal/core/domain"
	"github.com/duckalog/duckalog/internal/core/port"
	"github.com/duckalog/duckalog/internal/core/service"
	"github.com/go-chi/chi/v5"

	gomponents "maragu.dev/gomponents"
)

const maxQueryBytes = 1 << 20

func renderHTML(w http.ResponseWriter, status int, node gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error    string `json:"error"`
	Rejected bool   `json:"rejected,omitempty"`
}

// lookupStatus maps explorer errors to HTTP status codes.
func lookupStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAmbiguousView):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// queryStatus maps query errors to HTTP status codes. Rejections are the
// caller's fault; execution errors usually are too (bad column, missing view).
func queryStatus(err error) int {
	switch {
	case service.IsRejected(err):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusUnprocessableEntity
	}
}

func (h *Handler) runQuery(ctx context.Context, source, sql string) (*port.QueryResult, error) {
	return h.Query.Execute(service.WithSource(ctx, source), sql)
}

// --- HTML ---

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.Version})
}

func (h *Handler) ViewsPage(w http.ResponseWriter, r *http.Request) {
	views, err := h.Explorer.ListViews(r.Context())
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "listing views failed", "error", err)
		renderHTML(w, http.StatusInternalServerError, errorPage("Catalog unavailable", err.Error()))
		return
	}
	renderHTML(w, http.StatusOK, viewsPage(views))
}

func (h *Handler) ViewPage(w http.ResponseWriter, r *http.Request) {
	schema, name := chi.URLParam(r, "schema"), chi.URLParam(r, "name")
	detail, err := h.Explorer.DescribeView(r.Context(), schema, name)
	if err != nil {
		renderHTML(w, lookupStatus(err), errorPage("View not available", err.Error()))
		return
	}
	renderHTML(w, http.StatusOK, viewPage(detail))
}

func (h *Handler) ProfilePage(w http.ResponseWriter, r *http.Request) {
	schema, name := chi.URLParam(r, "schema"), chi.URLParam(r, "name")
	profile, err := h.Explorer.ProfileView(r.Context(), schema, name)
	if err != nil {
		renderHTML(w, lookupStatus(err), errorPage("Profile failed", err.Error()))
		return
	}
	renderHTML(w, http.StatusOK, profilePage(profile))
}

func (h *Handler) QueryPage(w http.ResponseWriter, r *http.Request) {
	renderHTML(w, http.StatusOK, queryPage(r.URL.Query().Get("sql"), nil, nil))
}

func (h *Handler) QueryRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBytes)
	if err := r.ParseForm(); err != nil {
		renderHTML(w, http.StatusBadRequest, errorPage("Bad request", "Could not read the submitted form."))
		return
	}
	sql := r.PostForm.Get("sql")

	result, err := h.runQuery(r.Context(), "ui", sql)
	if err != nil {
		qe := &queryError{Title: "Query failed", Message: err.Error()}
		if service.IsRejected(err) {
			qe.Title = "Query rejected"
		}
		renderHTML(w, queryStatus(err), queryPage(sql, nil, qe))
		return
	}
	renderHTML(w, http.StatusOK, queryPage(sql, result, nil))
}

// --- JSON API ---

func (h *Handler) APISchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.Explorer.ListSchemas(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schemas)
}

func (h *Handler) APIViews(w http.ResponseWriter, r *http.Request) {
	views, err := h.Explorer.ListViews(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	if views == nil {
		views = []port.ViewInfo{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) APIView(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Explorer.DescribeView(r.Context(), chi.URLParam(r, "schema"), chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, lookupStatus(err), apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type queryRequest struct {
	SQL string `json:"sql"`
}

func decodeQueryRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: fmt.Sprintf("invalid request body: %v", err)})
		return "", false
	}
	return req.SQL, true
}

func (h *Handler) APIQuery(w http.ResponseWriter, r *http.Request) {
	sql, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}
	result, err := h.runQuery(r.Context(), "api", sql)
	if err != nil {
		writeJSON(w, queryStatus(err), apiError{Error: err.Error(), Rejected: service.IsRejected(err)})
		return
	}
	if result.Rows == nil {
		result.Rows = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, result)
}

type checkResponse struct {
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
	Sanitized string `json:"sanitized"`
}

func (h *Handler) APICheck(w http.ResponseWriter, r *http.Request) {
	sql, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}
	resp := checkResponse{Valid: true, Sanitized: domain.Sanitize(sql)}
	if err := h.Query.Validate(sql); err != nil {
		resp.Valid = false
		resp.Reason = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
