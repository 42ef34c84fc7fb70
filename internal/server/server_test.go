package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/redactor/internal/config"
	"github.com/raaihank/redactor/internal/logger"
	"github.com/raaihank/redactor/internal/service"
	"github.com/raaihank/redactor/internal/workspace"
)

type gatedAnonymizer struct {
	gate  chan struct{}
	calls atomic.Int32
	last  atomic.Value
}

func (g *gatedAnonymizer) Anonymize(ctx context.Context, req service.Request) (*service.Response, error) {
	g.calls.Add(1)
	g.last.Store(req)
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &service.Response{AnonymizedText: strings.ReplaceAll(req.Text, "John Smith", "[NAME]")}, nil
}

func newTestServer(t *testing.T, anon service.Anonymizer, mutate ...func(*config.Config)) *Server {
	t.Helper()
	cfg := config.GetDefaults()
	cfg.WebSocket.Enabled = false
	for _, m := range mutate {
		m(cfg)
	}
	s, err := New(cfg, logger.NewNop(), Deps{Anonymizer: anon, Version: "test"})
	require.NoError(t, err)
	t.Cleanup(s.registry.CloseAll)
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) workspace.State {
	t.Helper()
	var state workspace.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	return state
}

func createWorkspace(t *testing.T, s *Server) string {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/workspaces", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created createResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, workspace.StatusIdle, created.State.Status)
	return created.ID
}

func TestNewRequiresAnonymizer(t *testing.T) {
	_, err := New(config.GetDefaults(), logger.NewNop(), Deps{})
	assert.Error(t, err)
}

func TestHealthAndInfo(t *testing.T) {
	s := newTestServer(t, &gatedAnonymizer{})

	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	createWorkspace(t, s)
	rec = do(t, s, http.MethodGet, "/info", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var info map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "test", info["version"])
	assert.EqualValues(t, 1, info["workspaces"])
}

func TestHealthReportsServiceProbe(t *testing.T) {
	cfg := config.GetDefaults()
	cfg.WebSocket.Enabled = false
	s, err := New(cfg, logger.NewNop(), Deps{
		Anonymizer: &gatedAnonymizer{},
		Health:     func(context.Context) error { return assert.AnError },
	})
	require.NoError(t, err)

	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Contains(t, rec.Body.String(), `"service":"unreachable"`)
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t, &gatedAnonymizer{})
	rec := do(t, s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestWorkspaceLifecycle(t *testing.T) {
	anon := &gatedAnonymizer{}
	s := newTestServer(t, anon)
	id := createWorkspace(t, s)
	base := "/api/workspaces/" + id

	rec := do(t, s, http.MethodPut, base+"/text", map[string]string{"text": "John Smith called"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "John Smith called", decodeState(t, rec).Text)

	rec = do(t, s, http.MethodPatch, base+"/options", map[string]any{"field": "emails", "value": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeState(t, rec).Options.Emails)

	rec = do(t, s, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeState(t, rec)
	assert.Equal(t, workspace.StatusSucceeded, state.Status)
	assert.Equal(t, "[NAME] called", state.Result)
	assert.False(t, anon.last.Load().(service.Request).Options.Emails)

	rec = do(t, s, http.MethodGet, base+"/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="anonymized-text.txt"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "[NAME] called", rec.Body.String())

	rec = do(t, s, http.MethodPost, base+"/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeState(t, rec)
	assert.Empty(t, state.Text)
	assert.Empty(t, state.Result)
	assert.False(t, state.Options.Emails, "clear keeps options")

	rec = do(t, s, http.MethodGet, base+"/download", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitEmptyText(t *testing.T) {
	anon := &gatedAnonymizer{}
	s := newTestServer(t, anon)
	id := createWorkspace(t, s)

	rec := do(t, s, http.MethodPost, "/api/workspaces/"+id+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeState(t, rec)
	assert.Equal(t, workspace.EmptyTextMessage, state.Error)
	assert.Zero(t, anon.calls.Load())
}

func TestSubmitConflictWhileInFlight(t *testing.T) {
	anon := &gatedAnonymizer{gate: make(chan struct{})}
	s := newTestServer(t, anon)
	id := createWorkspace(t, s)
	base := "/api/workspaces/" + id
	do(t, s, http.MethodPut, base+"/text", map[string]string{"text": "John Smith"})

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- do(t, s, http.MethodPost, base+"/submit", nil) }()

	ws, ok := s.registry.Get(id)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return ws.State().Status == workspace.StatusInFlight
	}, 2*time.Second, 5*time.Millisecond)

	rec := do(t, s, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, workspace.StatusInFlight, decodeState(t, rec).Status)

	close(anon.gate)
	first := <-done
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, workspace.StatusSucceeded, decodeState(t, first).Status)
	assert.EqualValues(t, 1, anon.calls.Load())
}

func TestDeleteAbortsInFlight(t *testing.T) {
	anon := &gatedAnonymizer{gate: make(chan struct{})}
	s := newTestServer(t, anon)
	id := createWorkspace(t, s)
	base := "/api/workspaces/" + id
	do(t, s, http.MethodPut, base+"/text", map[string]string{"text": "John Smith"})

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- do(t, s, http.MethodPost, base+"/submit", nil) }()

	ws, _ := s.registry.Get(id)
	require.Eventually(t, func() bool {
		return ws.State().Status == workspace.StatusInFlight
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, base, nil).Code)

	select {
	case rec := <-done:
		assert.Equal(t, http.StatusOK, rec.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not return after delete")
	}
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t, &gatedAnonymizer{})
	id := createWorkspace(t, s)
	base := "/api/workspaces/" + id

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown workspace", http.MethodGet, "/api/workspaces/nope", nil, http.StatusNotFound},
		{"text missing", http.MethodPut, base + "/text", map[string]int{"other": 1}, http.StatusBadRequest},
		{"unknown field", http.MethodPatch, base + "/options", map[string]any{"field": "faces", "value": true}, http.StatusBadRequest},
		{"wrong value type", http.MethodPatch, base + "/options", map[string]any{"field": "names", "value": "yes"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestWorkspaceLimit(t *testing.T) {
	s := newTestServer(t, &gatedAnonymizer{}, func(c *config.Config) {
		c.Server.MaxWorkspaces = 1
	})
	createWorkspace(t, s)

	rec := do(t, s, http.MethodPost, "/api/workspaces", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrTooManyWorkspaces.Error())
}

func TestRateLimitMiddleware(t *testing.T) {
	s := newTestServer(t, &gatedAnonymizer{}, func(c *config.Config) {
		c.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, Burst: 2}
	})

	assert.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/workspaces", nil).Code)
	assert.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/workspaces", nil).Code)

	rec := do(t, s, http.MethodPost, "/api/workspaces", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// health is outside the limited API
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", nil).Code)
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t, &gatedAnonymizer{})
	rec := do(t, s, http.MethodPost, "/api/workspaces", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestTypingThenSubmitWithDefaultLimits(t *testing.T) {
	anon := &gatedAnonymizer{}
	s := newTestServer(t, anon)
	id := createWorkspace(t, s)
	base := "/api/workspaces/" + id

	text := "My name is John Smith and I live at 42 Elm Street"
	require.Greater(t, len(text), config.GetDefaults().Server.RateLimit.Burst)

	// one edit per keystroke, the way a form syncs its textarea
	for i := 1; i <= len(text); i++ {
		rec := do(t, s, http.MethodPut, base+"/text", map[string]string{"text": text[:i]})
		require.Equal(t, http.StatusOK, rec.Code, "keystroke %d", i)
	}

	rec := do(t, s, http.MethodPost, base+"/submit", map[string]string{"text": text})
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeState(t, rec)
	assert.Equal(t, workspace.StatusSucceeded, state.Status)
	assert.Equal(t, "My name is [NAME] and I live at 42 Elm Street", state.Result)
	assert.Equal(t, text, anon.last.Load().(service.Request).Text)
}

func TestSubmitBody(t *testing.T) {
	anon := &gatedAnonymizer{}
	s := newTestServer(t, anon)
	id := createWorkspace(t, s)
	base := "/api/workspaces/" + id

	do(t, s, http.MethodPut, base+"/text", map[string]string{"text": "stale"})
	rec := do(t, s, http.MethodPost, base+"/submit", map[string]string{"text": "John Smith"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "John Smith", decodeState(t, rec).Text)
	assert.Equal(t, "John Smith", anon.last.Load().(service.Request).Text)

	req := httptest.NewRequest(http.MethodPost, base+"/submit", strings.NewReader("{"))
	req.RemoteAddr = "192.0.2.1:1234"
	bad := httptest.NewRecorder()
	s.Handler().ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestRateLimitCoversOnlyCreateAndSubmit(t *testing.T) {
	anon := &gatedAnonymizer{}
	s := newTestServer(t, anon, func(c *config.Config) {
		c.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, Burst: 2}
	})
	id := createWorkspace(t, s)
	base := "/api/workspaces/" + id

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodPut, base+"/text", map[string]string{"text": "John Smith"}).Code)
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, base, nil).Code)
	}

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, base+"/submit", nil).Code)
	rec := do(t, s, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.EqualValues(t, 1, anon.calls.Load())

	// teardown is never refused
	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, base, nil).Code)
}

func TestIdleWorkspacesExpire(t *testing.T) {
	s := newTestServer(t, &gatedAnonymizer{}, func(c *config.Config) {
		c.Server.MaxWorkspaces = 1
		c.Server.WorkspaceIdleTimeout = time.Minute
	})
	clock := time.Now()
	s.registry.now = func() time.Time { return clock }

	abandoned := createWorkspace(t, s)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodPost, "/api/workspaces", nil).Code)

	clock = clock.Add(30 * time.Second)
	assert.Empty(t, s.expireIdle())

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, []string{abandoned}, s.expireIdle())
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/workspaces/"+abandoned, nil).Code)

	createWorkspace(t, s)
}
