package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"victim-support/backend/internal/models"
	"victim-support/backend/internal/repository"
	"victim-support/backend/pkg/logger"
	"victim-support/backend/pkg/metrics"
)

// ReadTracker maintains the readBy annotations of stored messages
type ReadTracker struct {
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	log      *logger.Logger
	now      func() time.Time
}

func NewReadTracker(rooms repository.RoomRepository, messages repository.MessageRepository, log *logger.Logger) *ReadTracker {
	return &ReadTracker{
		rooms:    rooms,
		messages: messages,
		log:      log,
		now:      time.Now,
	}
}

// MarkRead acknowledges every message of the room the reader did not send.
// Repeating it is a no-op that returns zero.
func (t *ReadTracker) MarkRead(ctx context.Context, roomID string, reader models.Identity) (int64, error) {
	ctx, span := tracer.Start(ctx, "ReadTracker.MarkRead")
	defer span.End()
	span.SetAttributes(attribute.String("room.id", roomID))

	if err := reader.Validate(); err != nil {
		return 0, classify("mark read", err)
	}
	if _, err := t.rooms.GetByID(ctx, roomID); err != nil {
		return 0, classify("mark read", err)
	}

	marked, err := t.messages.MarkRead(ctx, roomID, reader, t.now().UTC())
	if err != nil {
		return 0, classify("mark read", err)
	}
	if marked > 0 {
		metrics.MessagesMarkedRead.Add(float64(marked))
		t.log.Debug("Messages marked read", "room_id", roomID, "reader", reader.String(), "count", marked)
	}
	return marked, nil
}

// UnreadCount counts messages sent by the given roles that forIdentity has
// not acknowledged. With no roles it counts the victim side.
func (t *ReadTracker) UnreadCount(ctx context.Context, roomID string, forIdentity models.Identity, senderRoles ...models.Role) (int64, error) {
	if len(senderRoles) == 0 {
		senderRoles = counterpartRoles
	}
	count, err := t.messages.CountUnread(ctx, roomID, forIdentity, senderRoles)
	if err != nil {
		return 0, classify("unread count", err)
	}
	return count, nil
}
