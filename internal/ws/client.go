package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"victim-support/backend/internal/models"
	"victim-support/backend/internal/service"
	"victim-support/backend/pkg/logger"
	"victim-support/backend/pkg/metrics"
)

// Client to server events
const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
	EventPing        = "ping"
)

// Server to client events, besides receive_message and messages_read
const (
	EventJoinedRoom      = "joined_room"
	EventLeftRoom        = "left_room"
	EventUserTypingStart = "user_typing_start"
	EventUserTypingStop  = "user_typing_stop"
	EventPong            = "pong"
	EventError           = "error"
)

// Client is one live connection of an authenticated participant
type Client struct {
	ID       string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
	Identity models.Identity

	handler *Handler
	limiter *rate.Limiter
	log     *logger.Logger

	mu     sync.Mutex
	closed bool
}

type roomRef struct {
	RoomID string `json:"roomId"`
}

type sendMessageContent struct {
	RoomID  string `json:"roomId"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

type typingPayload struct {
	RoomID string          `json:"roomId"`
	Sender models.Identity `json:"sender"`
}

// TrySend queues a frame without blocking. It reports false when the queue
// is full or the connection is gone.
func (c *Client) TrySend(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.OnDisconnect(c)
		c.Conn.Close()
		metrics.LiveConnections.Dec()
		c.log.Debug("ReadPump ended", "client_id", c.ID)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("Unexpected close", "client_id", c.ID, "error", err.Error())
			}
			break
		}

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			c.sendErrorMessage("Malformed frame")
			continue
		}

		// handled inline so a connection's frames are processed in order
		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message Message) {
	switch message.Type {
	case EventJoinRoom:
		c.handleJoin(message.Content)
	case EventLeaveRoom:
		c.handleLeave(message.Content)
	case EventSendMessage:
		c.handleSendMessage(message.Content)
	case EventTypingStart:
		c.handleTyping(message.Content, EventUserTypingStart)
	case EventTypingStop:
		c.handleTyping(message.Content, EventUserTypingStop)
	case EventPing:
		c.sendMessage(EventPong, nil)
	default:
		c.sendErrorMessage("Unknown event type: " + message.Type)
	}
}

func (c *Client) handleJoin(content json.RawMessage) {
	roomID, ok := parseRoomID(content)
	if !ok {
		c.sendErrorMessage("roomId is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if _, err := c.handler.chat.Authorize(ctx, roomID, c.Identity); err != nil {
		c.sendErrorMessage(describeError(err))
		return
	}

	c.Hub.Join(roomID, c)
	c.log.Debug("Joined room", "client_id", c.ID, "room_id", roomID)
	c.sendMessage(EventJoinedRoom, roomRef{RoomID: roomID})
}

func (c *Client) handleLeave(content json.RawMessage) {
	roomID, ok := parseRoomID(content)
	if !ok {
		c.sendErrorMessage("roomId is required")
		return
	}
	c.Hub.Leave(roomID, c)
	c.sendMessage(EventLeftRoom, roomRef{RoomID: roomID})
}

func (c *Client) handleSendMessage(content json.RawMessage) {
	if !c.allow() {
		return
	}

	var payload sendMessageContent
	if err := json.Unmarshal(content, &payload); err != nil || payload.RoomID == "" {
		c.sendErrorMessage("roomId and message are required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	// the sender is always the authenticated identity of the connection;
	// the stored message reaches the room, this client included, via publish
	if _, err := c.handler.chat.SendText(ctx, payload.RoomID, c.Identity, payload.Message.Content); err != nil {
		c.log.Warn("Live send failed",
			"client_id", c.ID,
			"room_id", payload.RoomID,
			"error", err.Error(),
		)
		c.sendErrorMessage(describeError(err))
	}
}

func (c *Client) handleTyping(content json.RawMessage, event string) {
	roomID, ok := parseRoomID(content)
	if !ok {
		c.sendErrorMessage("roomId is required")
		return
	}
	if !c.Hub.IsMember(roomID, c) {
		c.sendErrorMessage("Join the room first")
		return
	}
	if !c.allow() {
		return
	}
	c.Hub.PublishExcept(roomID, event, typingPayload{RoomID: roomID, Sender: c.Identity}, c)
}

func (c *Client) allow() bool {
	if c.limiter == nil || c.limiter.Allow() {
		return true
	}
	metrics.RateLimitHits.WithLabelValues("live").Inc()
	c.sendErrorMessage("Too many messages. Please slow down.")
	return false
}

func (c *Client) sendMessage(messageType string, content any) {
	frame, err := encodeFrame(messageType, content)
	if err != nil {
		c.log.LogError(err, "Failed to encode frame", "type", messageType)
		return
	}
	if !c.TrySend(frame) {
		metrics.FramesDropped.WithLabelValues(messageType).Inc()
	}
}

func (c *Client) sendErrorMessage(errorText string) {
	c.sendMessage(EventError, map[string]string{
		"message": errorText,
	})
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Send any queued messages as separate frames
			n := len(c.Send)
			for i := 0; i < n; i++ {
				extra, ok := <-c.Send
				if !ok {
					c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, extra); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// parseRoomID accepts either a bare string or {"roomId": "..."}
func parseRoomID(content json.RawMessage) (string, bool) {
	if len(content) == 0 {
		return "", false
	}
	var id string
	if err := json.Unmarshal(content, &id); err == nil {
		id = strings.TrimSpace(id)
		return id, id != ""
	}
	var ref roomRef
	if err := json.Unmarshal(content, &ref); err == nil && ref.RoomID != "" {
		return ref.RoomID, true
	}
	return "", false
}

func describeError(err error) string {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		return "Chat room not found"
	case errors.Is(err, service.ErrUnauthorized):
		return "Not a participant of this room"
	case errors.Is(err, service.ErrValidationFailed):
		return "Invalid message"
	}
	return "Failed to send message"
}
