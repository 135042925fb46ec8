package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"victim-support/backend/pkg/resilience"
)

type fixedLiveStats struct {
	rooms, connections int
	relay              *resilience.Stats
}

func (s fixedLiveStats) RoomCount() int { return s.rooms }
func (s fixedLiveStats) ConnectionCount() int { return s.connections }
func (s fixedLiveStats) RelayStats() *resilience.Stats { return s.relay }

func liveStatus(t *testing.T, stats LiveStats) map[string]any {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewLiveController(stats).RegisterRoutes(r.Group("/admin/chat"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/chat/live", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestLiveStatus(t *testing.T) {
	body := liveStatus(t, fixedLiveStats{rooms: 2, connections: 5})
	assert.Equal(t, float64(2), body["rooms"])
	assert.Equal(t, float64(5), body["connections"])
	assert.NotContains(t, body, "relay")

	body = liveStatus(t, fixedLiveStats{relay: &resilience.Stats{
		Name:          "relay-redis",
		State:         resilience.StateOpen,
		TotalFailures: 7,
	}})
	relay, ok := body["relay"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "open", relay["state"])
	assert.Equal(t, float64(7), relay["total_failures"])
}
