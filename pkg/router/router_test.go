package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"victim-support/backend/pkg/config"
	"victim-support/backend/pkg/di"
	"victim-support/backend/pkg/jwt"
	"victim-support/backend/pkg/logger"
)

func setupRouter(t *testing.T) (*Router, *di.Container) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("DEFAULT_ADMIN_ID", "A1")
	t.Setenv("CHAT_STORAGE_ROOT", t.TempDir())
	t.Setenv("RATE_LIMIT", "1000")
	t.Setenv("RATE_LIMIT_BURST", "1000")
	cfg := config.Load()

	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	container, err := di.New(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(container.Close)

	r := New(container)
	r.SetupRoutes()
	t.Cleanup(r.Close)
	return r, container
}

func token(t *testing.T, c *di.Container, role jwt.Role, id string) string {
	t.Helper()
	tok, err := c.JWTService.GenerateToken(role, id)
	require.NoError(t, err)
	return tok
}

func serve(r *Router, method, path, tok, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	return w
}

func TestChatRoutes(t *testing.T) {
	r, c := setupRouter(t)
	victim := token(t, c, jwt.RoleVictim, "64f1a2b3c4d5e6f708192a01")
	admin := token(t, c, jwt.RoleAdmin, "A1")

	w := serve(r, http.MethodGet, "/api/v1/chat/room", victim, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"roomId":"room-64f1a2b3c4d5e6f708192a01"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(r, http.MethodPost, "/api/v1/chat/room-64f1a2b3c4d5e6f708192a01/messages", victim, `{"content":"help"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(r, http.MethodGet, "/api/v1/admin/chat/room-64f1a2b3c4d5e6f708192a01/messages", admin, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"content":"help"`)

	w = serve(r, http.MethodGet, "/api/v1/admin/chat/live", admin, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"connections":0`)
}

func TestChatRoutesRequireRole(t *testing.T) {
	r, c := setupRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"no token", http.MethodGet, "/api/v1/chat/room", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/v1/chat/room", "not-a-jwt", http.StatusUnauthorized},
		{"staff on victim routes", http.MethodGet, "/api/v1/chat/room", token(t, c, jwt.RoleAdmin, "A1"), http.StatusForbidden},
		{"victim on staff routes", http.MethodGet, "/api/v1/admin/chat/victims", token(t, c, jwt.RoleVictim, "64f1a2b3c4d5e6f708192a01"), http.StatusForbidden},
		{"counselor assigning", http.MethodPut, "/api/v1/admin/chat/room-64f1a2b3c4d5e6f708192a01/counselor", token(t, c, jwt.RoleCounselor, "C1"), http.StatusForbidden},
		{"anonymous allowed", http.MethodGet, "/api/v1/chat/room", token(t, c, jwt.RoleAnonymous, "X1"), http.StatusOK},
		{"websocket without token", http.MethodGet, "/ws", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.method, tt.path, tt.token, "")
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestHealthRoutes(t *testing.T) {
	r, c := setupRouter(t)
	c.Health.RunChecks(context.Background())

	for _, path := range []string{"/health", "/api/v1/health"} {
		w := serve(r, http.MethodGet, path, "", "")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Status     string                    `json:"status"`
			Components map[string]map[string]any `json:"components"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Contains(t, body.Components, "database")
	}

	w := serve(r, http.MethodGet, "/livez", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	r, _ := setupRouter(t)
	serve(r, http.MethodGet, "/livez", "", "")

	w := serve(r, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat/room", nil)
	req.Header.Set("Origin", "https://support.example")
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://support.example", w.Header().Get("Access-Control-Allow-Origin"))
}
