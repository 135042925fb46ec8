package relay

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"victim-support/backend/pkg/logger"
)

func TestRedisRelayDeliversAcrossNodes(t *testing.T) {
	mr := miniredis.RunT(t)
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})

	sender, err := NewRedisRelay(mr.Addr(), log)
	require.NoError(t, err)
	defer sender.Close()
	receiver, err := NewRedisRelay(mr.Addr(), log)
	require.NoError(t, err)
	defer receiver.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Envelope, 1)
	require.NoError(t, receiver.Subscribe(ctx, func(env Envelope) {
		received <- env
	}))

	frame := json.RawMessage(`{"type":"receive_message","content":{"content":"help"}}`)
	require.NoError(t, sender.Publish(ctx, Envelope{Origin: "node-a", RoomID: "room-V1", Frame: frame}))

	select {
	case env := <-received:
		assert.Equal(t, "node-a", env.Origin)
		assert.Equal(t, "room-V1", env.RoomID)
		assert.JSONEq(t, string(frame), string(env.Frame))
	case <-time.After(2 * time.Second):
		t.Fatal("relay frame not received")
	}

	assert.NoError(t, sender.Ping(ctx))
}

func TestSubjectRoundTrip(t *testing.T) {
	assert.Equal(t, "chat.room.room-V1", subject("room-V1"))
	assert.Equal(t, "room-V1", roomFromSubject(subject("room-V1")))
}
