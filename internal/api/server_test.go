package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pbaille/mandalart/internal/domain"
	"github.com/pbaille/mandalart/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	srv := New(s, Options{
		AllowedOrigins: []string{"http://localhost:5173"},
		Logger:         log.New(io.Discard),
	})
	return srv, s
}

func serve(t *testing.T, srv *Server, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndHello(t *testing.T) {
	srv, _ := newTestServer(t)

	w := serve(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])

	w = serve(t, srv, http.MethodGet, "/api/hello", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello from mandalart!", decode[map[string]string](t, w)["message"])
}

func TestEpicLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	w := serve(t, srv, http.MethodPost, "/api/epic", domain.EpicCreate{Title: "Health", Status: "active"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	root := decode[domain.Epic](t, w)
	assert.NotZero(t, root.ID)
	assert.Nil(t, root.UpdatedAt)

	pos := domain.GridIndex(2)
	w = serve(t, srv, http.MethodPost, "/api/epic", domain.EpicCreate{Title: "Sleep", CoreEpicID: &root.ID, Position: &pos})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	child := decode[domain.Epic](t, w)
	assert.Equal(t, 1, child.Depth)

	w = serve(t, srv, http.MethodGet, "/api/epic/"+idStr(root.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[domain.Epic](t, w)
	require.Len(t, got.Subs, 1)
	assert.Equal(t, "Sleep", got.Subs[0].Title)

	w = serve(t, srv, http.MethodGet, "/api/epic/"+idStr(root.ID)+"/subs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Epic](t, w), 1)

	w = serve(t, srv, http.MethodPut, "/api/epic/"+idStr(child.ID), map[string]any{"title": "Sleep 8h"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[domain.Epic](t, w)
	assert.Equal(t, "Sleep 8h", updated.Title)
	assert.NotNil(t, updated.UpdatedAt)
	require.NotNil(t, updated.Position)
	assert.Equal(t, pos, *updated.Position)

	w = serve(t, srv, http.MethodDelete, "/api/epic/"+idStr(root.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	deleted := decode[domain.Epic](t, w)
	assert.Equal(t, root.ID, deleted.ID)
	assert.Len(t, deleted.Subs, 1)

	w = serve(t, srv, http.MethodGet, "/api/epic/"+idStr(root.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Epic not found", decode[map[string]string](t, w)["detail"])
}

func TestEpicErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		target     string
		body       interface{}
		wantStatus int
	}{
		{"unknown parent", http.MethodPost, "/api/epic", map[string]any{"title": "x", "core_epic_id": 99}, http.StatusBadRequest},
		{"missing title", http.MethodPost, "/api/epic", map[string]any{"description": "x"}, http.StatusBadRequest},
		{"position out of grid", http.MethodPost, "/api/epic", map[string]any{"title": "x", "position": 12}, http.StatusBadRequest},
		{"invalid body", http.MethodPost, "/api/epic", "not json", http.StatusUnprocessableEntity},
		{"non numeric id", http.MethodGet, "/api/epic/abc", nil, http.StatusUnprocessableEntity},
		{"missing epic", http.MethodGet, "/api/epic/42", nil, http.StatusNotFound},
		{"update missing epic", http.MethodPut, "/api/epic/42", map[string]any{"title": "x"}, http.StatusNotFound},
		{"delete missing epic", http.MethodDelete, "/api/epic/42", nil, http.StatusNotFound},
		{"negative skip", http.MethodGet, "/api/epic?skip=-1", nil, http.StatusUnprocessableEntity},
		{"wrong method", http.MethodPatch, "/api/epic/1", nil, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, srv, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestEpicReparentCycle(t *testing.T) {
	srv, _ := newTestServer(t)

	root := decode[domain.Epic](t, serve(t, srv, http.MethodPost, "/api/epic", domain.EpicCreate{Title: "root"}))
	child := decode[domain.Epic](t, serve(t, srv, http.MethodPost, "/api/epic", domain.EpicCreate{Title: "child", CoreEpicID: &root.ID}))

	w := serve(t, srv, http.MethodPut, "/api/epic/"+idStr(root.ID), map[string]any{"core_epic_id": child.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["detail"], "cycle")
}

func TestListEpicsPaging(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, title := range []string{"a", "b", "c"} {
		serve(t, srv, http.MethodPost, "/api/epic", domain.EpicCreate{Title: title})
	}

	w := serve(t, srv, http.MethodGet, "/api/epic?skip=1&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	epics := decode[[]domain.Epic](t, w)
	require.Len(t, epics, 1)
	assert.Equal(t, "b", epics[0].Title)

	w = serve(t, srv, http.MethodDelete, "/api/epic", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "All epics deleted successfully", decode[domain.Message](t, w).Message)

	w = serve(t, srv, http.MethodGet, "/api/epic", nil)
	assert.Equal(t, "[]\n", w.Body.String())
}

func TestHabitRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	epic := decode[domain.Epic](t, serve(t, srv, http.MethodPost, "/api/epic", domain.EpicCreate{Title: "Fitness"}))

	// collection answers with and without the trailing slash
	w := serve(t, srv, http.MethodPost, "/api/habit/", domain.HabitCreate{Title: "Run", EpicID: &epic.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	run := decode[domain.Habit](t, w)
	assert.Equal(t, domain.HabitActive, run.Status)
	assert.Equal(t, 1, run.TargetCount)

	w = serve(t, srv, http.MethodPost, "/api/habit", domain.HabitCreate{Title: "Read"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(t, srv, http.MethodGet, "/api/habit/?epic_id="+idStr(epic.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	habits := decode[[]domain.Habit](t, w)
	require.Len(t, habits, 1)
	assert.Equal(t, "Run", habits[0].Title)

	w = serve(t, srv, http.MethodPatch, "/api/habit/"+idStr(run.ID)+"/status?status=paused", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.HabitPaused, decode[domain.Habit](t, w).Status)

	w = serve(t, srv, http.MethodGet, "/api/habit?status=paused", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Habit](t, w), 1)

	w = serve(t, srv, http.MethodPost, "/api/habit/"+idStr(run.ID)+"/commit", map[string]any{"habit_id": 999, "effort": 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	commit := decode[domain.HabitCommit](t, w)
	assert.Equal(t, run.ID, commit.HabitID)

	w = serve(t, srv, http.MethodGet, "/api/habit/"+idStr(run.ID)+"/commits", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.HabitCommit](t, w), 1)

	w = serve(t, srv, http.MethodDelete, "/api/habit/"+idStr(run.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Habit deleted successfully", decode[domain.Message](t, w).Message)

	w = serve(t, srv, http.MethodGet, "/api/habit/"+idStr(run.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Habit not found", decode[map[string]string](t, w)["detail"])
}

func TestHabitValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	habit := decode[domain.Habit](t, serve(t, srv, http.MethodPost, "/api/habit/", domain.HabitCreate{Title: "Stretch"}))
	id := idStr(habit.ID)

	tests := []struct {
		name       string
		method     string
		target     string
		body       interface{}
		wantStatus int
	}{
		{"bad schedule on create", http.MethodPost, "/api/habit/", map[string]any{"title": "x", "schedule": "every day"}, http.StatusUnprocessableEntity},
		{"descriptor schedule", http.MethodPost, "/api/habit/", map[string]any{"title": "x", "schedule": "@daily"}, http.StatusOK},
		{"unknown epic", http.MethodPost, "/api/habit/", map[string]any{"title": "x", "epic_id": 77}, http.StatusBadRequest},
		{"zero target", http.MethodPost, "/api/habit/", map[string]any{"title": "x", "target_count": 0}, http.StatusBadRequest},
		{"bad schedule on update", http.MethodPut, "/api/habit/" + id, map[string]any{"schedule": "61 * * * *"}, http.StatusUnprocessableEntity},
		{"clear schedule", http.MethodPut, "/api/habit/" + id, map[string]any{"schedule": nil}, http.StatusOK},
		{"bad status on update", http.MethodPut, "/api/habit/" + id, map[string]any{"status": "done"}, http.StatusUnprocessableEntity},
		{"bad status patch", http.MethodPatch, "/api/habit/" + id + "/status?status=done", nil, http.StatusUnprocessableEntity},
		{"missing status", http.MethodPatch, "/api/habit/" + id + "/status", nil, http.StatusUnprocessableEntity},
		{"status of missing habit", http.MethodPatch, "/api/habit/99/status?status=archived", nil, http.StatusNotFound},
		{"bad status filter", http.MethodGet, "/api/habit?status=done", nil, http.StatusUnprocessableEntity},
		{"bad epic filter", http.MethodGet, "/api/habit?epic_id=x", nil, http.StatusUnprocessableEntity},
		{"effort too high", http.MethodPost, "/api/habit/" + id + "/commit", map[string]any{"effort": 6}, http.StatusUnprocessableEntity},
		{"effort missing", http.MethodPost, "/api/habit/" + id + "/commit", map[string]any{}, http.StatusUnprocessableEntity},
		{"commit on missing habit", http.MethodPost, "/api/habit/99/commit", map[string]any{"effort": 3}, http.StatusNotFound},
		{"zero commit limit", http.MethodGet, "/api/habit/" + id + "/commits?limit=0", nil, http.StatusUnprocessableEntity},
		{"commits of missing habit", http.MethodGet, "/api/habit/99/commits", nil, http.StatusNotFound},
		{"delete missing habit", http.MethodDelete, "/api/habit/99", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, srv, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/epic", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardWithoutCredentials(t *testing.T) {
	s, err := store.New(":memory:")
	require.NoError(t, err)
	defer s.Close()
	srv := New(s, Options{AllowedOrigins: []string{"*"}, Logger: log.New(io.Discard)})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://any.example")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "http://any.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRequestIDAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = serve(t, srv, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "mandalart_http_requests_total")
	assert.Contains(t, body, `route="GET /health"`)
}

func TestRequestLogging(t *testing.T) {
	s, err := store.New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	var buf bytes.Buffer
	srv := New(s, Options{Logger: log.New(&buf)})

	serve(t, srv, http.MethodGet, "/api/epic/7", nil)
	out := buf.String()
	assert.Contains(t, out, "request")
	assert.Contains(t, out, "status=404")
	assert.Contains(t, out, "path=/api/epic/7")
}

func idStr(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestRateLimit(t *testing.T) {
	s, err := store.New(":memory:")
	require.NoError(t, err)
	defer s.Close()
	srv := New(s, Options{Logger: log.New(io.Discard), RateLimit: 0.001, RateBurst: 2})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(t, srv, http.MethodGet, "/health", nil).Code)
	}
	w := serve(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"detail":"Too many requests"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	// buckets are per client address
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(1, 1, log.New(io.Discard))
	rl.now = func() time.Time { return now }

	rl.limiter("10.0.0.1")
	now = now.Add(5 * time.Minute)
	rl.limiter("10.0.0.2")
	now = now.Add(6 * time.Minute)

	assert.Equal(t, 1, rl.cleanup(limiterIdle))
	assert.NotContains(t, rl.limiters, "10.0.0.1")
	assert.Contains(t, rl.limiters, "10.0.0.2")
	assert.Zero(t, rl.cleanup(limiterIdle))
}
