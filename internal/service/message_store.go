package service

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"victim-support/backend/internal/models"
	"victim-support/backend/internal/repository"
	"victim-support/backend/pkg/logger"
	"victim-support/backend/pkg/metrics"
)

var tracer = otel.Tracer("victim-support/backend/internal/service")

// MessageStore owns room logs. Append is the only way a message is added.
type MessageStore struct {
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	log      *logger.Logger
	now      func() time.Time
	newID    func() string
}

func NewMessageStore(rooms repository.RoomRepository, messages repository.MessageRepository, log *logger.Logger) *MessageStore {
	return &MessageStore{
		rooms:    rooms,
		messages: messages,
		log:      log,
		now:      time.Now,
		newID: func() string {
			// monotonic within the process, so ids sort in creation order
			return ulid.Make().String()
		},
	}
}

// Append stores the draft in the room's log and returns the stored message
func (s *MessageStore) Append(ctx context.Context, roomID string, draft models.Draft) (*models.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageStore.Append")
	defer span.End()
	span.SetAttributes(
		attribute.String("room.id", roomID),
		attribute.String("message.kind", string(draft.Kind)),
	)

	if err := draft.Validate(); err != nil {
		return nil, classify("append", err)
	}

	start := time.Now()
	msg := draft.ToMessage(s.newID(), roomID, 0, s.now().UTC())
	if err := s.messages.Append(ctx, msg); err != nil {
		err = classify("append", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		s.log.LogError(err, "Failed to append message", "room_id", roomID)
		return nil, err
	}
	metrics.AppendDuration.Observe(time.Since(start).Seconds())
	metrics.MessagesAppended.WithLabelValues(string(msg.Kind), string(msg.SenderRole)).Inc()

	s.log.Debug("Message appended",
		"room_id", roomID,
		"message_id", msg.ID,
		"seq", msg.Seq,
		"kind", string(msg.Kind),
	)
	return msg, nil
}

// List returns the room's messages in creation order with their readers
func (s *MessageStore) List(ctx context.Context, roomID string) ([]models.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageStore.List")
	defer span.End()

	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return nil, classify("list messages", err)
	}
	messages, err := s.messages.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, classify("list messages", err)
	}
	return messages, nil
}
