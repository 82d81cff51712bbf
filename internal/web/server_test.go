package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempo/internal/session"
	"tempo/internal/store"
	"tempo/internal/sync"
	"tempo/internal/tasks"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := store.Open(":memory:")
	t.Cleanup(func() { st.Close() })
	e := sync.NewEngine(st, nil, sync.Options{ActorID: "web-test"})
	t.Cleanup(e.Close)
	return NewServer(e)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/sessions", `{"seed":"Plan my week"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, w, &created)
	require.NotEmpty(t, created.ID)

	w = do(t, s, http.MethodGet, "/api/sessions/active", "")
	var active struct {
		ID string `json:"id"`
	}
	decode(t, w, &active)
	assert.Equal(t, created.ID, active.ID)

	w = do(t, s, http.MethodPost, "/api/sessions/"+created.ID+"/messages", `{"role":"user","content":"hello"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var msg session.Message
	decode(t, w, &msg)
	assert.Equal(t, "hello", msg.Content)
	assert.NotEmpty(t, msg.MsgID)

	w = do(t, s, http.MethodGet, "/api/sessions/"+created.ID+"/messages", "")
	var msgs []session.Message
	decode(t, w, &msgs)
	require.Len(t, msgs, 1)

	w = do(t, s, http.MethodGet, "/api/sessions", "")
	var list []session.Session
	decode(t, w, &list)
	assert.Equal(t, "Plan my week", list[0].Title)

	w = do(t, s, http.MethodDelete, "/api/sessions/"+created.ID+"/messages", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodGet, "/api/sessions/"+created.ID+"/messages", "")
	decode(t, w, &msgs)
	assert.Empty(t, msgs)
}

func TestSessionSearch(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/api/sessions", `{"seed":"Groceries run"}`)
	var first struct {
		ID string `json:"id"`
	}
	decode(t, w, &first)
	// Keep the first session non-empty so creating the second does not
	// collect it.
	do(t, s, http.MethodPost, "/api/sessions/"+first.ID+"/messages", `{"role":"user","content":"milk and eggs"}`)
	do(t, s, http.MethodPost, "/api/sessions", `{"seed":"Workout plan"}`)

	w = do(t, s, http.MethodGet, "/api/sessions?q=groc", "")
	var list []session.Session
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Groceries run", list[0].Title)
}

func TestAppendRequiresContent(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/api/sessions", `{"seed":"x"}`)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, w, &created)

	w = do(t, s, http.MethodPost, "/api/sessions/"+created.ID+"/messages", `{"role":"user"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskFlow(t *testing.T) {
	s := newTestServer(t)

	body := `{"groups":[{"title":"Morning","items":[{"text":"Stretch","energy":"easy"},{"text":"Run","estimatedMinutes":30,"energy":"hard"}]}]}`
	w := do(t, s, http.MethodPost, "/api/tasks/plan", body)
	require.Equal(t, http.StatusCreated, w.Code)
	var groups []tasks.Group
	decode(t, w, &groups)
	require.Len(t, groups, 1)
	g := groups[0]
	require.Len(t, g.Items, 2)
	assert.Equal(t, tasks.LevelEasy, g.Items[0].Level)
	assert.Equal(t, tasks.LevelHard, g.Items[1].Level)

	// Submitting before completion conflicts.
	w = do(t, s, http.MethodPost, "/api/tasks/"+g.ID+"/submit", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	for _, it := range g.Items {
		w = do(t, s, http.MethodPost, "/api/tasks/"+g.ID+"/items/"+it.ID+"/toggle", "")
		assert.Equal(t, http.StatusNoContent, w.Code)
	}

	w = do(t, s, http.MethodPost, "/api/tasks/"+g.ID+"/submit", "")
	require.Equal(t, http.StatusOK, w.Code)
	var result struct {
		Points int `json:"points"`
		Total  int `json:"total"`
	}
	decode(t, w, &result)
	assert.Equal(t, 3, result.Points)
	assert.Equal(t, 3, result.Total)

	w = do(t, s, http.MethodGet, "/api/points", "")
	var pts struct {
		Points int `json:"points"`
	}
	decode(t, w, &pts)
	assert.Equal(t, 3, pts.Points)
}

func TestToggleUnknownItem(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/api/tasks/nope/items/nah/toggle", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskStatsEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/tasks/plan", `{"groups":[{"title":"T","items":[{"text":"a"}]}]}`)

	w := do(t, s, http.MethodGet, "/api/tasks/stats", "")
	var st tasks.Stats
	decode(t, w, &st)
	assert.Equal(t, 1, st.TotalItems)
	assert.Zero(t, st.DoneItems)
}

func TestProfileRoundTrip(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPut, "/api/profile", `{"nick":"ada","bio":"counting machine"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/api/profile", "")
	var p sync.Profile
	decode(t, w, &p)
	assert.Equal(t, "ada", p.Nick)
	assert.Equal(t, "counting machine", p.Bio)
	assert.NotZero(t, p.UpdatedAt)
}
