package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"victim-support/backend/internal/models"
	"victim-support/backend/internal/repository"
	"victim-support/backend/pkg/logger"
	"victim-support/backend/pkg/metrics"
)

// counterpartRoles are the sender roles counted as unread for staff
var counterpartRoles = []models.Role{models.RoleVictim, models.RoleAnonymous}

// RoomRegistry resolves, creates and looks up rooms
type RoomRegistry struct {
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	log      *logger.Logger
	now      func() time.Time
}

func NewRoomRegistry(rooms repository.RoomRepository, messages repository.MessageRepository, log *logger.Logger) *RoomRegistry {
	return &RoomRegistry{
		rooms:    rooms,
		messages: messages,
		log:      log,
		now:      time.Now,
	}
}

// GetOrCreate returns the room of the counterpart, creating it on first
// contact. adminID is only used when the room is created.
func (r *RoomRegistry) GetOrCreate(ctx context.Context, counterpart models.Counterpart, adminID string) (*models.Room, error) {
	ctx, span := tracer.Start(ctx, "RoomRegistry.GetOrCreate")
	defer span.End()

	if counterpart.IsZero() {
		return nil, fmt.Errorf("get or create room: %w: missing counterpart", ErrValidationFailed)
	}
	if err := models.Admin(adminID).Validate(); err != nil {
		return nil, classify("get or create room", err)
	}
	span.SetAttributes(attribute.String("counterpart.type", string(counterpart.Type())))

	room, err := r.lookup(ctx, counterpart)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, classify("get or create room", err)
	}

	room = models.NewRoom(counterpart, adminID, r.now().UTC())
	err = r.rooms.Create(ctx, room)
	if errors.Is(err, repository.ErrDuplicate) {
		// a concurrent first contact won the insert
		r.log.Debug("Room creation raced, resolving existing room", "room_id", room.ID)
		room, err = r.lookup(ctx, counterpart)
		return room, classify("get or create room", err)
	}
	if err != nil {
		return nil, classify("get or create room", err)
	}

	metrics.RoomsCreated.WithLabelValues(string(counterpart.Type())).Inc()
	r.log.Info("Room created",
		"room_id", room.ID,
		"counterpart_type", string(room.CounterpartType),
		"admin_id", room.AdminID,
	)
	return room, nil
}

func (r *RoomRegistry) lookup(ctx context.Context, counterpart models.Counterpart) (*models.Room, error) {
	room, err := r.rooms.GetByCounterpart(ctx, counterpart.ID())
	if err != nil {
		return nil, err
	}
	if room.CounterpartType != counterpart.Type() {
		return nil, fmt.Errorf("%w: counterpart id is bound to a %s room", ErrValidationFailed, room.CounterpartType)
	}
	return room, nil
}

// FindByRoomID returns the room or ErrRoomNotFound
func (r *RoomRegistry) FindByRoomID(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := r.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, classify("find room", err)
	}
	return room, nil
}

// AssignCounselor sets the counselor of a room
func (r *RoomRegistry) AssignCounselor(ctx context.Context, roomID, counselorID string) (*models.Room, error) {
	if err := models.Counselor(counselorID).Validate(); err != nil {
		return nil, classify("assign counselor", err)
	}
	room, err := r.rooms.UpdateCounselor(ctx, roomID, counselorID)
	if err != nil {
		return nil, classify("assign counselor", err)
	}
	r.log.Info("Counselor assigned", "room_id", roomID, "counselor_id", counselorID)
	return room, nil
}

// Authorize returns the room if caller participates in it
func (r *RoomRegistry) Authorize(ctx context.Context, roomID string, caller models.Identity) (*models.Room, error) {
	room, err := r.FindByRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsParticipant(caller) {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrUnauthorized)
	}
	return room, nil
}

// ListForStaff summarizes the rooms a staff member handles, most recent first
func (r *RoomRegistry) ListForStaff(ctx context.Context, staff models.Identity) ([]models.RoomSummary, error) {
	if !staff.IsStaff() {
		return nil, fmt.Errorf("list rooms: %w", ErrUnauthorized)
	}

	rooms, err := r.rooms.ListForStaff(ctx, staff)
	if err != nil {
		return nil, classify("list rooms", err)
	}

	ids := make([]string, len(rooms))
	for i, room := range rooms {
		ids[i] = room.ID
	}
	activity, err := r.messages.Activity(ctx, ids, staff, counterpartRoles)
	if err != nil {
		return nil, classify("list rooms", err)
	}

	summaries := make([]models.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summary := models.RoomSummary{
			RoomID:          room.ID,
			Name:            room.CounterpartID,
			CounterpartType: room.CounterpartType,
		}
		if a, ok := activity[room.ID]; ok {
			ts := a.Last.Timestamp
			summary.LastMessage = a.Last.Content
			summary.LastMessageTime = &ts
			summary.UnreadCount = a.Unread
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
