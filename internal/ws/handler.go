package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"victim-support/backend/internal/auth"
	"victim-support/backend/internal/models"
	"victim-support/backend/pkg/errors"
	"victim-support/backend/pkg/logger"
	"victim-support/backend/pkg/metrics"
	"victim-support/backend/pkg/middleware"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024 // 64KB
)

// ChatService is what the live surface needs from the delivery path
type ChatService interface {
	Authorize(ctx context.Context, roomID string, caller models.Identity) (*models.Room, error)
	SendText(ctx context.Context, roomID string, sender models.Identity, content string) (*models.Message, error)
}

// HandlerConfig tunes live connections
type HandlerConfig struct {
	// SendQueueSize bounds the frames buffered per connection
	SendQueueSize int
	// MessageRate and MessageBurst limit send_message and typing events
	MessageRate    rate.Limit
	MessageBurst   int
	AllowedOrigins []string
}

func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		SendQueueSize:  256,
		MessageRate:    5,
		MessageBurst:   10,
		AllowedOrigins: []string{"*"},
	}
}

// Handler upgrades authenticated requests to live connections
type Handler struct {
	hub      *Hub
	chat     ChatService
	config   HandlerConfig
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewHandler(hub *Hub, chat ChatService, config HandlerConfig, log *logger.Logger) *Handler {
	if config.SendQueueSize <= 0 {
		config.SendQueueSize = DefaultHandlerConfig().SendQueueSize
	}
	h := &Handler{
		hub:    hub,
		chat:   chat,
		config: config,
		log:    log,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeWs upgrades the request. The identity comes from the auth middleware,
// never from the query string or from frames.
func (h *Handler) ServeWs(c *gin.Context) {
	identity, ok := auth.Identity(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		c.Abort()
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Error upgrading connection", "error", err.Error())
		return
	}

	client := &Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		Send:     make(chan []byte, h.config.SendQueueSize),
		Hub:      h.hub,
		Identity: identity,
		handler:  h,
		log:      h.log,
	}
	if h.config.MessageRate > 0 {
		client.limiter = rate.NewLimiter(h.config.MessageRate, h.config.MessageBurst)
	}

	metrics.LiveConnections.Inc()
	h.log.Info("Live connection established",
		"client_id", client.ID,
		"identity", identity.String(),
		"request_id", middleware.GetRequestID(c.Request.Context()),
	)

	go client.WritePump()
	go client.ReadPump()
}
