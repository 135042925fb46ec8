package repository

import (
	"context"
	"errors"
	"time"

	"victim-support/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// RoomRepository persists rooms. Create must fail with ErrDuplicate when a
// room for the same counterpart (or the same id) already exists.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	GetByID(ctx context.Context, id string) (*models.Room, error)
	GetByCounterpart(ctx context.Context, counterpartID string) (*models.Room, error)
	UpdateCounselor(ctx context.Context, roomID, counselorID string) (*models.Room, error)
	ListForStaff(ctx context.Context, staff models.Identity) ([]models.Room, error)
	Ping(ctx context.Context) error
}

// MessageRepository persists room logs and their read annotations
type MessageRepository interface {
	// Append assigns the next sequence number of the room to msg and stores
	// it, advancing the room's updated time. ErrNotFound if the room is missing.
	Append(ctx context.Context, msg *models.Message) error
	ListByRoom(ctx context.Context, roomID string) ([]models.Message, error)
	Last(ctx context.Context, roomID string) (*models.Message, error)
	// MarkRead adds reader to every message of the room it did not send and
	// has not read yet, returning how many were added.
	MarkRead(ctx context.Context, roomID string, reader models.Identity, at time.Time) (int64, error)
	CountUnread(ctx context.Context, roomID string, reader models.Identity, senderRoles []models.Role) (int64, error)
	// Activity reports the latest message and the CountUnread figure of
	// each room with messages. Rooms without messages are left out.
	Activity(ctx context.Context, roomIDs []string, reader models.Identity, senderRoles []models.Role) (map[string]RoomActivity, error)
}

// RoomActivity is the staff list view of one room's log
type RoomActivity struct {
	Last   *models.Message
	Unread int64
}
