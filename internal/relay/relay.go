// Package relay forwards live room frames between server instances so a
// message published on one node reaches members connected to another.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SubjectPrefix prefixes the channel (redis) or subject (nats) of a room
const SubjectPrefix = "chat.room"

// Envelope is a frame on the wire between nodes
type Envelope struct {
	Origin string          `json:"origin"`
	RoomID string          `json:"roomId"`
	Frame  json.RawMessage `json:"frame"`
}

// Handler receives frames published by other nodes
type Handler func(env Envelope)

// Relay publishes frames to, and receives frames from, other nodes
type Relay interface {
	Name() string
	Publish(ctx context.Context, env Envelope) error
	// Subscribe delivers envelopes from all rooms until ctx is done
	Subscribe(ctx context.Context, handler Handler) error
	Ping(ctx context.Context) error
	Close() error
}

func subject(roomID string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, roomID)
}

func roomFromSubject(s string) string {
	return strings.TrimPrefix(s, SubjectPrefix+".")
}

func encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func decode(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}
