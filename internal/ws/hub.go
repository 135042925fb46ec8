package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"victim-support/backend/internal/relay"
	"victim-support/backend/pkg/logger"
	"victim-support/backend/pkg/metrics"
	"victim-support/backend/pkg/resilience"
)

// Message is the envelope of every frame in both directions
type Message struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

func encodeFrame(event string, payload any) ([]byte, error) {
	return json.Marshal(outboundMessage{Type: event, Content: payload})
}

// room is the live membership of one room. Its lock serializes publishes so
// every member sees the room's events in publish order.
type room struct {
	mu      sync.Mutex
	members map[*Client]struct{}
}

// Hub tracks which connections are joined to which rooms and fans events
// out to them. It never touches the message store.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[string]*room
	memberships map[*Client]map[string]struct{}

	nodeID   string
	relay    relay.Relay
	breaker  *resilience.CircuitBreaker
	outbound chan relay.Envelope
	// set while Run drains outbound
	forwarding atomic.Bool
	log        *logger.Logger
}

// NewHub creates a hub. relay may be nil for a single node.
func NewHub(r relay.Relay, log *logger.Logger) *Hub {
	h := &Hub{
		rooms:       make(map[string]*room),
		memberships: make(map[*Client]map[string]struct{}),
		nodeID:      uuid.NewString(),
		relay:       r,
		log:         log,
	}
	if r != nil {
		h.outbound = make(chan relay.Envelope, 1024)
		h.breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("relay-"+r.Name()), log)
	}
	return h
}

func (h *Hub) NodeID() string { return h.nodeID }

// Run forwards local publishes to the relay and delivers frames from other
// nodes until ctx is done. Without a relay it only waits.
func (h *Hub) Run(ctx context.Context) error {
	if h.relay == nil {
		<-ctx.Done()
		return nil
	}

	h.forwarding.Store(true)
	defer h.forwarding.Store(false)

	if err := h.relay.Subscribe(ctx, h.deliverRemote); err != nil {
		metrics.RelayErrors.WithLabelValues(h.relay.Name(), "subscribe").Inc()
		return err
	}
	h.log.Info("Live relay started", "driver", h.relay.Name(), "node_id", h.nodeID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-h.outbound:
			err := h.breaker.Execute(func() error {
				return h.relay.Publish(ctx, env)
			})
			if err != nil {
				metrics.RelayErrors.WithLabelValues(h.relay.Name(), "publish").Inc()
			}
		}
	}
}

func (h *Hub) deliverRemote(env relay.Envelope) {
	if env.Origin == h.nodeID {
		return
	}
	var frame Message
	if err := json.Unmarshal(env.Frame, &frame); err != nil {
		h.log.LogError(err, "Dropping malformed relayed frame", "room_id", env.RoomID)
		return
	}
	h.deliver(env.RoomID, frame.Type, env.Frame, nil)
}

// Join adds the client to the room. Joining twice is a no-op.
func (h *Hub) Join(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{members: make(map[*Client]struct{})}
		h.rooms[roomID] = r
	}
	r.mu.Lock()
	r.members[c] = struct{}{}
	r.mu.Unlock()

	joined, ok := h.memberships[c]
	if !ok {
		joined = make(map[string]struct{})
		h.memberships[c] = joined
	}
	joined[roomID] = struct{}{}
}

// Leave removes the client from the room. Leaving a room the client is not
// in is a no-op.
func (h *Hub) Leave(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(roomID, c)
}

func (h *Hub) leaveLocked(roomID string, c *Client) {
	if r, ok := h.rooms[roomID]; ok {
		r.mu.Lock()
		delete(r.members, c)
		empty := len(r.members) == 0
		r.mu.Unlock()
		if empty {
			delete(h.rooms, roomID)
		}
	}
	if joined, ok := h.memberships[c]; ok {
		delete(joined, roomID)
	}
}

// IsMember reports whether the client is joined to the room
func (h *Hub) IsMember(roomID string, c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.memberships[c][roomID]
	return ok
}

// OnDisconnect removes the client from every room and closes its queue
func (h *Hub) OnDisconnect(c *Client) {
	h.mu.Lock()
	for roomID := range h.memberships[c] {
		h.leaveLocked(roomID, c)
	}
	delete(h.memberships, c)
	h.mu.Unlock()

	c.closeSend()
}

// Publish delivers the event to every member of the room, the originator
// included. It never blocks: a member whose queue is full misses the frame.
func (h *Hub) Publish(roomID, event string, payload any) {
	h.publish(roomID, event, payload, nil)
}

// PublishExcept is Publish without delivering to except
func (h *Hub) PublishExcept(roomID, event string, payload any, except *Client) {
	h.publish(roomID, event, payload, except)
}

func (h *Hub) publish(roomID, event string, payload any, except *Client) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.log.LogError(err, "Failed to encode event", "room_id", roomID, "event", event)
		return
	}
	metrics.EventsPublished.WithLabelValues(event).Inc()
	h.deliver(roomID, event, frame, except)

	if h.outbound != nil && h.forwarding.Load() {
		select {
		case h.outbound <- relay.Envelope{Origin: h.nodeID, RoomID: roomID, Frame: frame}:
		default:
			metrics.RelayErrors.WithLabelValues(h.relay.Name(), "queue_full").Inc()
			h.log.Warn("Relay queue full, frame not forwarded", "room_id", roomID, "event", event)
		}
	}
}

func (h *Hub) deliver(roomID, event string, frame []byte, except *Client) {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.members {
		if c == except {
			continue
		}
		if !c.TrySend(frame) {
			metrics.FramesDropped.WithLabelValues(event).Inc()
			h.log.Warn("Dropping frame for slow connection",
				"room_id", roomID,
				"event", event,
				"client_id", c.ID,
			)
		}
	}
}

// ConnectionCount returns the number of connections joined to any room
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.memberships)
}

// RoomCount returns the number of rooms with live members
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// RoomSize returns the number of members of a room
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// RelayStats returns the relay breaker counters, nil without a relay
func (h *Hub) RelayStats() *resilience.Stats {
	if h.breaker == nil {
		return nil
	}
	stats := h.breaker.GetStats()
	return &stats
}

// RelayPing checks the relay connection, nil without a relay
func (h *Hub) RelayPing(ctx context.Context) error {
	if h.relay == nil {
		return nil
	}
	return h.relay.Ping(ctx)
}
