package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"victim-support/backend/internal/models"
)

// MemoryStore keeps rooms and messages in process memory. It implements both
// repositories and backs tests and single-node deployments without a database.
type MemoryStore struct {
	mu            sync.RWMutex
	rooms         map[string]*models.Room
	byCounterpart map[string]string
	messages      map[string][]*models.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:         make(map[string]*models.Room),
		byCounterpart: make(map[string]string),
		messages:      make(map[string][]*models.Message),
	}
}

func (s *MemoryStore) Create(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := s.byCounterpart[room.CounterpartID]; ok {
		return ErrDuplicate
	}
	stored := copyRoom(room)
	s.rooms[room.ID] = stored
	s.byCounterpart[room.CounterpartID] = room.ID
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRoom(room), nil
}

func (s *MemoryStore) GetByCounterpart(ctx context.Context, counterpartID string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCounterpart[counterpartID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRoom(s.rooms[id]), nil
}

func (s *MemoryStore) UpdateCounselor(ctx context.Context, roomID, counselorID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	room.CounselorID = &counselorID
	return copyRoom(room), nil
}

func (s *MemoryStore) ListForStaff(ctx context.Context, staff models.Identity) ([]models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rooms []models.Room
	for _, room := range s.rooms {
		switch staff.Role {
		case models.RoleAdmin:
			if room.AdminID != staff.ID {
				continue
			}
		case models.RoleCounselor:
			if room.CounselorID == nil || *room.CounselorID != staff.ID {
				continue
			}
		default:
			continue
		}
		rooms = append(rooms, *copyRoom(room))
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt)
	})
	return rooms, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Append(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[msg.RoomID]
	if !ok {
		return ErrNotFound
	}
	room.MessageSeq++
	msg.Seq = room.MessageSeq
	if msg.Timestamp.Before(room.UpdatedAt) {
		msg.Timestamp = room.UpdatedAt
	}
	room.UpdatedAt = msg.Timestamp

	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], copyMessage(msg))
	return nil
}

func (s *MemoryStore) ListByRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[roomID]
	messages := make([]models.Message, 0, len(log))
	for _, m := range log {
		messages = append(messages, *copyMessage(m))
	}
	return messages, nil
}

func (s *MemoryStore) Last(ctx context.Context, roomID string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[roomID]
	if len(log) == 0 {
		return nil, ErrNotFound
	}
	return copyMessage(log[len(log)-1]), nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, roomID string, reader models.Identity, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var marked int64
	for _, m := range s.messages[roomID] {
		if m.Sender() == reader || m.HasRead(reader) {
			continue
		}
		m.Reads = append(m.Reads, models.MessageRead{
			MessageID:  m.ID,
			ReaderRole: reader.Role,
			ReaderID:   reader.ID,
			ReadAt:     at,
		})
		marked++
	}
	return marked, nil
}

func (s *MemoryStore) CountUnread(ctx context.Context, roomID string, reader models.Identity, senderRoles []models.Role) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, m := range s.messages[roomID] {
		if !containsRole(senderRoles, m.SenderRole) || m.Sender() == reader {
			continue
		}
		if !m.HasRead(reader) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Activity(ctx context.Context, roomIDs []string, reader models.Identity, senderRoles []models.Role) (map[string]RoomActivity, error) {
	activity := make(map[string]RoomActivity, len(roomIDs))
	for _, roomID := range roomIDs {
		last, err := s.Last(ctx, roomID)
		if err != nil {
			continue
		}
		unread, _ := s.CountUnread(ctx, roomID, reader, senderRoles)
		activity[roomID] = RoomActivity{Last: last, Unread: unread}
	}
	return activity, nil
}

func containsRole(roles []models.Role, role models.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func copyRoom(r *models.Room) *models.Room {
	c := *r
	if r.CounselorID != nil {
		id := *r.CounselorID
		c.CounselorID = &id
	}
	return &c
}

func copyMessage(m *models.Message) *models.Message {
	c := *m
	c.Reads = append([]models.MessageRead(nil), m.Reads...)
	return &c
}
