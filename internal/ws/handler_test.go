package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"victim-support/backend/internal/auth"
	"victim-support/backend/internal/models"
	"victim-support/backend/internal/repository"
	"victim-support/backend/internal/service"
	"victim-support/backend/pkg/errors"
)

type liveFixture struct {
	server *httptest.Server
	chat   *service.ChatService
	hub    *Hub
}

// newLiveFixture serves /ws with the identity taken from the role and id
// query parameters, standing in for the token middleware.
func newLiveFixture(t *testing.T, config HandlerConfig) *liveFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := testLogger()
	store := repository.NewMemoryStore()
	hub := NewHub(nil, log)
	chat := service.NewChatService(
		service.NewRoomRegistry(store, store, log),
		service.NewMessageStore(store, store, log),
		service.NewReadTracker(store, store, log),
		service.NewAttachmentIngester(store, service.IngesterConfig{StorageRoot: t.TempDir()}, log),
		hub,
		"A1",
		log,
	)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		identity, err := models.NewIdentity(c.Query("role"), c.Query("id"))
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		auth.SetIdentity(c, identity)
	}, NewHandler(hub, chat, config, log).ServeWs)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &liveFixture{server: server, chat: chat, hub: hub}
}

func (f *liveFixture) dial(t *testing.T, who models.Identity) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?role=" + string(who.Role) + "&id=" + who.ID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, content any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": event, "content": content}))
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func expect(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	m := read(t, conn)
	require.Equal(t, event, m.Type, "content: %s", m.Content)
	return m.Content
}

func TestLiveConversation(t *testing.T) {
	f := newLiveFixture(t, DefaultHandlerConfig())
	ctx := context.Background()
	victim, admin := models.Victim("64f1a2b3c4d5e6f708192a01"), models.Admin("A1")

	room, err := f.chat.ResolveRoom(ctx, victim)
	require.NoError(t, err)
	require.Equal(t, "room-64f1a2b3c4d5e6f708192a01", room.ID)

	adminConn := f.dial(t, admin)
	send(t, adminConn, EventJoinRoom, "room-64f1a2b3c4d5e6f708192a01")
	assert.JSONEq(t, `{"roomId":"room-64f1a2b3c4d5e6f708192a01"}`, string(expect(t, adminConn, EventJoinedRoom)))

	victimConn := f.dial(t, victim)
	send(t, victimConn, EventJoinRoom, map[string]string{"roomId": "room-64f1a2b3c4d5e6f708192a01"})
	expect(t, victimConn, EventJoinedRoom)

	send(t, victimConn, EventSendMessage, map[string]any{
		"roomId":  "room-64f1a2b3c4d5e6f708192a01",
		"message": map[string]string{"content": "help"},
	})

	var received struct {
		ID         string `json:"id"`
		Content    string `json:"content"`
		Sender     string `json:"sender"`
		SenderType string `json:"senderType"`
	}
	require.NoError(t, json.Unmarshal(expect(t, adminConn, service.EventReceiveMessage), &received))
	assert.Equal(t, "help", received.Content)
	assert.Equal(t, "64f1a2b3c4d5e6f708192a01", received.Sender)
	assert.Equal(t, "Victim", received.SenderType)
	assert.NotEmpty(t, received.ID)

	// the sender gets the stored message too
	expect(t, victimConn, service.EventReceiveMessage)

	send(t, adminConn, EventTypingStart, "room-64f1a2b3c4d5e6f708192a01")
	var typing typingPayload
	require.NoError(t, json.Unmarshal(expect(t, victimConn, EventUserTypingStart), &typing))
	assert.Equal(t, admin, typing.Sender)

	marked, err := f.chat.MarkRead(ctx, "room-64f1a2b3c4d5e6f708192a01", admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	var receipt service.ReadReceipt
	require.NoError(t, json.Unmarshal(expect(t, victimConn, service.EventMessagesRead), &receipt))
	assert.Equal(t, admin, receipt.Reader)
	assert.Equal(t, int64(1), receipt.Count)

	// typing is not echoed, so the admin's next frame is the receipt
	expect(t, adminConn, service.EventMessagesRead)

	history, err := f.chat.History(ctx, "room-64f1a2b3c4d5e6f708192a01", victim)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []models.Identity{admin}, history[0].ReadBy())
}

func TestLiveRejectsOutsiders(t *testing.T) {
	f := newLiveFixture(t, DefaultHandlerConfig())
	_, err := f.chat.ResolveRoom(context.Background(), models.Victim("64f1a2b3c4d5e6f708192a01"))
	require.NoError(t, err)

	conn := f.dial(t, models.Victim("64f1a2b3c4d5e6f708192a02"))

	send(t, conn, EventJoinRoom, "room-64f1a2b3c4d5e6f708192a01")
	assert.JSONEq(t, `{"message":"Not a participant of this room"}`, string(expect(t, conn, EventError)))

	send(t, conn, EventJoinRoom, "room-nobody")
	assert.JSONEq(t, `{"message":"Chat room not found"}`, string(expect(t, conn, EventError)))

	send(t, conn, EventSendMessage, map[string]any{
		"roomId":  "room-64f1a2b3c4d5e6f708192a01",
		"message": map[string]string{"content": "hi"},
	})
	expect(t, conn, EventError)

	send(t, conn, EventTypingStart, "room-64f1a2b3c4d5e6f708192a01")
	assert.JSONEq(t, `{"message":"Join the room first"}`, string(expect(t, conn, EventError)))

	assert.Equal(t, 0, f.hub.RoomSize("room-64f1a2b3c4d5e6f708192a01"))
}

func TestLiveProtocolErrors(t *testing.T) {
	f := newLiveFixture(t, DefaultHandlerConfig())
	conn := f.dial(t, models.Victim("64f1a2b3c4d5e6f708192a01"))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	expect(t, conn, EventError)

	send(t, conn, "shout", nil)
	expect(t, conn, EventError)

	send(t, conn, EventJoinRoom, nil)
	expect(t, conn, EventError)

	send(t, conn, EventPing, nil)
	expect(t, conn, EventPong)
}

func TestLiveRateLimit(t *testing.T) {
	config := DefaultHandlerConfig()
	config.MessageRate = 0.001
	config.MessageBurst = 1
	f := newLiveFixture(t, config)

	_, err := f.chat.ResolveRoom(context.Background(), models.Victim("64f1a2b3c4d5e6f708192a01"))
	require.NoError(t, err)
	conn := f.dial(t, models.Victim("64f1a2b3c4d5e6f708192a01"))
	send(t, conn, EventJoinRoom, "room-64f1a2b3c4d5e6f708192a01")
	expect(t, conn, EventJoinedRoom)

	msg := map[string]any{"roomId": "room-64f1a2b3c4d5e6f708192a01", "message": map[string]string{"content": "help"}}
	send(t, conn, EventSendMessage, msg)
	expect(t, conn, service.EventReceiveMessage)

	send(t, conn, EventSendMessage, msg)
	assert.Contains(t, string(expect(t, conn, EventError)), "slow down")
}

func TestLiveDisconnectLeavesRooms(t *testing.T) {
	f := newLiveFixture(t, DefaultHandlerConfig())
	_, err := f.chat.ResolveRoom(context.Background(), models.Victim("64f1a2b3c4d5e6f708192a01"))
	require.NoError(t, err)

	conn := f.dial(t, models.Victim("64f1a2b3c4d5e6f708192a01"))
	send(t, conn, EventJoinRoom, "room-64f1a2b3c4d5e6f708192a01")
	expect(t, conn, EventJoinedRoom)
	require.Equal(t, 1, f.hub.RoomSize("room-64f1a2b3c4d5e6f708192a01"))

	conn.Close()
	assert.Eventually(t, func() bool { return f.hub.RoomSize("room-64f1a2b3c4d5e6f708192a01") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWsRequiresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(NewHub(nil, testLogger()), nil, DefaultHandlerConfig(), testLogger())

	r := gin.New()
	r.Use(errors.ErrorHandler())
	r.GET("/ws", handler.ServeWs)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_REQUIRED")
}

func TestCheckOrigin(t *testing.T) {
	h := NewHandler(NewHub(nil, testLogger()), nil, HandlerConfig{AllowedOrigins: []string{"https://support.example"}}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, h.checkOrigin(req))

	req.Header.Set("Origin", "https://support.example")
	assert.True(t, h.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, h.checkOrigin(req))
}
