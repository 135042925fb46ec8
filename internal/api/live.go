package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"victim-support/backend/pkg/resilience"
)

// LiveStats is what the live channel reports about itself
type LiveStats interface {
	ConnectionCount() int
	RoomCount() int
	RelayStats() *resilience.Stats
}

// LiveResponse represents the live channel status shown to staff
type LiveResponse struct {
	Rooms       int               `json:"rooms"`
	Connections int               `json:"connections"`
	Relay       *resilience.Stats `json:"relay,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// LiveController reports the state of the live channel on this node
type LiveController struct {
	stats LiveStats
}

func NewLiveController(stats LiveStats) *LiveController {
	return &LiveController{stats: stats}
}

// Status returns the joined rooms and connections of this node, and the
// relay breaker state when events are forwarded to other nodes
func (h *LiveController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, LiveResponse{
		Rooms:       h.stats.RoomCount(),
		Connections: h.stats.ConnectionCount(),
		Relay:       h.stats.RelayStats(),
		Timestamp:   time.Now(),
	})
}

// RegisterRoutes registers live status routes
func (h *LiveController) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/live", h.Status)
}
