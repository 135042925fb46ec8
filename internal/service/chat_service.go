package service

import (
	"context"
	"errors"
	"os"
	"sync"

	"victim-support/backend/internal/models"
	"victim-support/backend/pkg/logger"
)

// Live events published to rooms by the delivery path
const (
	EventReceiveMessage = "receive_message"
	EventMessagesRead   = "messages_read"
)

// Publisher fans an event out to the live members of a room. It must not block.
type Publisher interface {
	Publish(roomID, event string, payload any)
}

// ReadReceipt is the payload of a messages_read event
type ReadReceipt struct {
	RoomID string          `json:"roomId"`
	Reader models.Identity `json:"reader"`
	Count  int64           `json:"count"`
}

// ChatService is the single delivery path: every message is appended to the
// room log first and published only once it is stored.
type ChatService struct {
	registry  *RoomRegistry
	store     *MessageStore
	reads     *ReadTracker
	ingester  *AttachmentIngester
	publisher Publisher
	locks     *roomLocks
	adminID   string
	log       *logger.Logger
}

func NewChatService(
	registry *RoomRegistry,
	store *MessageStore,
	reads *ReadTracker,
	ingester *AttachmentIngester,
	publisher Publisher,
	defaultAdminID string,
	log *logger.Logger,
) *ChatService {
	return &ChatService{
		registry:  registry,
		store:     store,
		reads:     reads,
		ingester:  ingester,
		publisher: publisher,
		locks:     newRoomLocks(),
		adminID:   defaultAdminID,
		log:       log,
	}
}

func (s *ChatService) Registry() *RoomRegistry         { return s.registry }
func (s *ChatService) Ingester() *AttachmentIngester { return s.ingester }

// ResolveRoom returns the room of a victim-side caller, creating it on
// first contact with the default admin assigned.
func (s *ChatService) ResolveRoom(ctx context.Context, caller models.Identity) (*models.Room, error) {
	counterpart, err := models.CounterpartFor(caller)
	if err != nil {
		return nil, classify("resolve room", err)
	}
	return s.registry.GetOrCreate(ctx, counterpart, s.adminID)
}

// Authorize returns the room if the caller participates in it
func (s *ChatService) Authorize(ctx context.Context, roomID string, caller models.Identity) (*models.Room, error) {
	return s.registry.Authorize(ctx, roomID, caller)
}

// History lists a room's messages for a participant
func (s *ChatService) History(ctx context.Context, roomID string, caller models.Identity) ([]models.Message, error) {
	if _, err := s.registry.Authorize(ctx, roomID, caller); err != nil {
		return nil, err
	}
	return s.store.List(ctx, roomID)
}

// SendText appends a text message from a participant and publishes it
func (s *ChatService) SendText(ctx context.Context, roomID string, sender models.Identity, content string) (*models.Message, error) {
	if _, err := s.registry.Authorize(ctx, roomID, sender); err != nil {
		return nil, err
	}
	return s.deliver(ctx, roomID, models.TextDraft(sender, content))
}

// SendAttachment ingests an upload, appends the message referencing it and
// publishes it. If the append fails the stored file is removed again.
func (s *ChatService) SendAttachment(ctx context.Context, sender models.Identity, up Upload, duration float64) (*models.Message, *Attachment, error) {
	if _, err := s.registry.Authorize(ctx, up.RoomID, sender); err != nil {
		removeTemp(up.TempPath)
		return nil, nil, err
	}

	att, err := s.ingester.Ingest(ctx, up)
	if err != nil {
		return nil, nil, err
	}

	draft := models.Draft{
		Sender:   sender,
		Kind:     up.Kind,
		Content:  att.ReferenceURL,
		FileName: att.FileName,
		FileSize: att.FileSize,
	}
	if up.Kind == models.KindVoice && duration > 0 {
		draft.Duration = duration
	}

	msg, err := s.deliver(ctx, up.RoomID, draft)
	if err != nil {
		s.ingester.Discard(att)
		return nil, nil, err
	}
	return msg, att, nil
}

// MarkRead acknowledges the room's messages for reader and tells the room
func (s *ChatService) MarkRead(ctx context.Context, roomID string, reader models.Identity) (int64, error) {
	if _, err := s.registry.Authorize(ctx, roomID, reader); err != nil {
		return 0, err
	}
	marked, err := s.reads.MarkRead(ctx, roomID, reader)
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		s.publisher.Publish(roomID, EventMessagesRead, ReadReceipt{RoomID: roomID, Reader: reader, Count: marked})
	}
	return marked, nil
}

// deliver holds the room lock across append and publish so live members see
// messages in log order. Nothing is published when the append fails.
func (s *ChatService) deliver(ctx context.Context, roomID string, draft models.Draft) (*models.Message, error) {
	unlock := s.locks.lock(roomID)
	defer unlock()

	msg, err := s.store.Append(ctx, roomID, draft)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(roomID, EventReceiveMessage, msg)
	return msg, nil
}

// ErrorCode names a service failure for transport layers
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, ErrValidationFailed):
		return "VALIDATION_FAILED"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrIngestFailed):
		return "INGEST_FAILED"
	}
	return "PERSISTENCE_FAILED"
}

func removeTemp(p string) {
	if p != "" {
		_ = os.Remove(p)
	}
}

// roomLocks hands out one mutex per room, dropped once nobody holds it
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	sync.Mutex
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[string]*roomLock)}
}

func (l *roomLocks) lock(roomID string) func() {
	l.mu.Lock()
	rl, ok := l.locks[roomID]
	if !ok {
		rl = &roomLock{}
		l.locks[roomID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.Lock()
	return func() {
		rl.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, roomID)
		}
		l.mu.Unlock()
	}
}

func (l *roomLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
