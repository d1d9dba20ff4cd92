package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/ideate/internal/apidoc"
	"github.com/mesh-intelligence/ideate/internal/logging"
	"github.com/mesh-intelligence/ideate/internal/sqlite"
	"github.com/mesh-intelligence/ideate/pkg/types"
)

func parse(t *testing.T, raw map[string]any) *types.DomainSpec {
	t.Helper()
	spec, err := types.Parse(raw)
	require.NoError(t, err)
	return spec
}

func tasksSpec(t *testing.T) *types.DomainSpec {
	return parse(t, map[string]any{
		"domain": "tasks", "label": "Task", "labelPlural": "Tasks",
		"features": map[string]any{"archive": true, "search": true},
		"fields": []any{
			map[string]any{"key": "title", "label": "Title", "type": "string", "required": true},
			map[string]any{"key": "priority", "label": "Priority", "type": "number", "min": 1, "max": 5},
		},
	})
}

func notesSpec(t *testing.T) *types.DomainSpec {
	return parse(t, map[string]any{
		"domain": "notes", "label": "Note", "labelPlural": "Notes",
		"features": map[string]any{"create": false, "update": false, "delete": false},
		"fields": []any{
			map[string]any{"key": "body", "label": "Body", "type": "string"},
		},
	})
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	backend *sqlite.Backend
}

func newTestServer(t *testing.T, specs ...*types.DomainSpec) *testServer {
	t.Helper()
	ctx := context.Background()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })

	var domains []Domain
	for _, spec := range specs {
		s, err := b.Store(ctx, spec)
		require.NoError(t, err)
		domains = append(domains, Domain{Spec: spec, Store: s})
	}
	h, err := NewHandler(logging.Discard(), Options{
		Version: "test",
		Ping:    b.Ping,
		OpenAPI: apidoc.Build("test", specs...),
	}, domains...)
	require.NoError(t, err)
	return &testServer{t: t, handler: h, backend: b}
}

func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(s.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) create(fields map[string]any) map[string]any {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/tasks", fields)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]any](s.t, rec)
}

func TestCreateAndGet(t *testing.T) {
	srv := newTestServer(t, tasksSpec(t))

	rec := srv.do(http.MethodPost, "/tasks", map[string]any{"title": "A", "priority": 3, "extra": "ignored"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, `"1"`, rec.Header().Get("ETag"))

	created := decode[map[string]any](t, rec)
	assert.NotEmpty(t, created["id"])
	assert.Equal(t, false, created["archived"])
	assert.Equal(t, "A", created["title"])
	assert.Equal(t, 3.0, created["priority"])
	assert.NotContains(t, created, "extra")
	assert.Contains(t, created, "createdAt")
	assert.Contains(t, created, "updatedAt")

	rec = srv.do(http.MethodGet, "/tasks/"+created["id"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[map[string]any](t, rec))
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer(t, tasksSpec(t))

	tests := []struct {
		name    string
		body    any
		wantErr string
	}{
		{"missing required", map[string]any{"priority": 3}, "Field 'Title' is required"},
		{"above max", map[string]any{"title": "A", "priority": 6}, "Field 'Priority' must be at most 5"},
		{"composite value", map[string]any{"title": []any{"x"}}, "Field 'Title' has an unsupported value"},
		{"empty object", map[string]any{}, "No data provided"},
		{"no body", nil, "No data provided"},
		{"malformed", `{"title":`, "Invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(http.MethodPost, "/tasks", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantErr, decode[map[string]any](t, rec)["error"])
		})
	}

	rec := srv.do(http.MethodGet, "/tasks?includeArchived=true", nil)
	assert.Empty(t, decode[[]any](t, rec), "nothing was stored")
}

func TestValidationErrorList(t *testing.T) {
	srv := newTestServer(t, tasksSpec(t))

	rec := srv.do(http.MethodPost, "/tasks", map[string]any{"priority": 0})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[struct {
		Error  string             `json:"error"`
		Errors []types.FieldError `json:"errors"`
	}](t, rec)
	assert.Equal(t, []types.FieldError{
		{Field: "title", Message: "Field 'Title' is required"},
		{Field: "priority", Message: "Field 'Priority' must be at least 1"},
	}, body.Errors)
}

func TestGetNotFound(t *testing.T) {
	srv := newTestServer(t, tasksSpec(t))

	rec := srv.do(http.MethodGet, "/tasks/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Task not found", decode[map[string]any](t, rec)["error"])
}

func TestUpdate(t *testing.T) {
	srv := newTestServer(t, tasksSpec(t))
	created := srv.create(map[string]any{"title": "A", "priority": 3})
	path := "/tasks/" + created["id"].(string)

	rec := srv.do(http.MethodPut, path, map[string]any{"priority": 6})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Field 'Priority' must be at most 5", decode[map[string]any](t, rec)["error"])

	rec = srv.do(http.MethodGet, path, nil)
	assert.Equal(t, 3.0, decode[map[string]any](t, rec)["priority"], "stored value unchanged")

	rec = srv.do(http.MethodPut, path, map[string]any{"priority": 4, "title": nil, "archived": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[map[string]any](t, rec)
	assert.Equal(t, 4.0, updated["priority"])
	assert.Equal(t, "A", updated["title"])
	assert.Equal(t, true, updated["archived"])
	assert.Equal(t, `"2"`, rec.Header().Get("ETag"))

	rec = srv.do(http.MethodPut, path, map[string]any{"archived": "yes"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPut, path, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPut, "/tasks/nope", map[string]any{"title": "B"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateIfMatch(t *testing.T) {
	srv := newTestServer(t, tasksSpec(t))
	created := srv.create(map[string]any{"title": "A"})
	path := "/tasks/" + created["id"].(string)

	rec := srv.do(http.MethodPut, path, map[string]any{"title": "B"}, "If-Match", `"1"`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(http.MethodPut, path, map[string]any{"title": "C"}, "If-Match", `"1"`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(http.MethodPut, path, map[string]any{"title": "C"}, "If-Match", "garbage")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPut, path, map[string]any{"title": "C"}, "If-Match", "*")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDelete(t *testing.T) {
	srv := newTestServer(t, tasksSpec(t))
	created := srv.create(map[string]any{"title": "A"})
	path := "/tasks/" + created["id"].(string)

	rec := srv.do(http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Task deleted successfully", decode[map[string]any](t, rec)["message"])

	assert.Equal(t, http.StatusNotFound, srv.do(http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, srv.do(http.MethodDelete, path, nil).Code)
}

func TestArchiveRestoreAndListFilters(t *testing.T) {
	srv := newTestServer(t, tasksSpec(t))
	a := srv.create(map[string]any{"title": "Alpha"})
	b := srv.create(map[string]any{"title": "Beta"})
	aID, bID := a["id"].(string), b["id"].(string)

	rec := srv.do(http.MethodPost, "/tasks/"+aID+"/archive", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"message": "Task archived", "id": aID}, decode[map[string]any](t, rec))

	ids := func(path string) []string {
		rec := srv.do(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var out []string
		for _, e := range decode[[]map[string]any](t, rec) {
			out = append(out, e["id"].(string))
		}
		return out
	}
	assert.Equal(t, []string{bID}, ids("/tasks"))
	assert.Equal(t, []string{bID, aID}, ids("/tasks?includeArchived=true"))
	assert.Equal(t, []string{aID}, ids("/tasks?archivedOnly=true&includeArchived=false"))
	assert.Equal(t, []string{aID}, ids("/tasks?includeArchived=true&q=ALP"))

	rec = srv.do(http.MethodPost, "/tasks/"+aID+"/restore", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Task restored", decode[map[string]any](t, rec)["message"])
	assert.Len(t, ids("/tasks"), 2)

	assert.Equal(t, http.StatusNotFound, srv.do(http.MethodPost, "/tasks/nope/archive", nil).Code)
}

func TestFeatureToggles(t *testing.T) {
	srv := newTestServer(t, notesSpec(t))

	tests := []struct {
		method, path string
		want         int
		wantErr      string
	}{
		{http.MethodPost, "/notes", http.StatusMethodNotAllowed, "Create not enabled for this domain"},
		{http.MethodPut, "/notes/x", http.StatusMethodNotAllowed, "Update not enabled for this domain"},
		{http.MethodDelete, "/notes/x", http.StatusMethodNotAllowed, "Delete not enabled for this domain"},
		{http.MethodPost, "/notes/x/archive", http.StatusBadRequest, "Archive feature not enabled for this domain"},
		{http.MethodPost, "/notes/x/restore", http.StatusBadRequest, "Archive feature not enabled for this domain"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := srv.do(tt.method, tt.path, map[string]any{"body": "x"})
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.wantErr, decode[map[string]any](t, rec)["error"])
		})
	}
}

func TestUpdateArchivedRequiresArchiveFeature(t *testing.T) {
	spec := parse(t, map[string]any{
		"domain": "memos", "label": "Memo", "labelPlural": "Memos",
		"fields": []any{map[string]any{"key": "text", "label": "Text", "type": "string"}},
	})
	srv := newTestServer(t, spec)
	rec := srv.do(http.MethodPost, "/memos", map[string]any{"text": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[map[string]any](t, rec)["id"].(string)


	rec = srv.do(http.MethodPut, "/memos/"+id, map[string]any{"archived": true})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Archive feature not enabled for this domain", decode[map[string]any](t, rec)["error"])

	rec = srv.do(http.MethodPut, "/memos/"+id, map[string]any{"text": "changed", "archived": false})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodGet, "/memos/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, false, got["archived"])
	assert.Equal(t, "hello", got["text"])

	rec = srv.do(http.MethodPut, "/memos/"+id, map[string]any{"text": "changed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "changed", decode[map[string]any](t, rec)["text"])
}

func TestSearchDisabledIgnoresQuery(t *testing.T) {
	spec := parse(t, map[string]any{
		"domain": "tasks", "label": "Task", "labelPlural": "Tasks",
		"fields": []any{map[string]any{"key": "title", "label": "Title", "type": "string"}},
	})
	srv := newTestServer(t, spec)
	srv.create(map[string]any{"title": "one"})
	srv.create(map[string]any{"title": "two"})

	rec := srv.do(http.MethodGet, "/tasks?q=one", nil)
	assert.Len(t, decode[[]any](t, rec), 2)
}

func TestServiceEndpoints(t *testing.T) {
	srv := newTestServer(t, tasksSpec(t), notesSpec(t))

	rec := srv.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	index := decode[map[string]any](t, rec)
	assert.Equal(t, "test", index["version"])
	assert.Len(t, index["domains"], 2)

	rec = srv.do(http.MethodGet, "/tasks/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode[map[string]any](t, rec)
	assert.Equal(t, "tasks", cfg["domain"])
	assert.Equal(t, "#3B82F6", cfg["branding"].(map[string]any)["primaryColor"])

	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/readyz", nil).Code)

	rec = srv.do(http.MethodGet, "/openapi.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec)["paths"], "/tasks/{id}/archive")

	assert.Equal(t, http.StatusNotFound, srv.do(http.MethodGet, "/unknown", nil).Code)

	require.NoError(t, srv.backend.Detach())
	assert.Equal(t, http.StatusServiceUnavailable, srv.do(http.MethodGet, "/readyz", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, srv.do(http.MethodGet, "/tasks", nil).Code)
}

func TestNewHandlerRejectsClashingDomains(t *testing.T) {
	health := parse(t, map[string]any{
		"domain": "healthz", "label": "H", "labelPlural": "Hs",
		"fields": []any{},
	})
	_, err := NewHandler(logging.Discard(), Options{}, Domain{Spec: health})
	assert.Error(t, err)

	tasks := tasksSpec(t)
	_, err = NewHandler(logging.Discard(), Options{}, Domain{Spec: tasks}, Domain{Spec: tasks})
	assert.Error(t, err)
}
