package repository

import (
	"context"
	"time"

	"victim-support/backend/internal/models"
	"victim-support/backend/pkg/cache"
)

// CachedRoomRepository keeps recently read rooms in memory. Participation is
// checked on every send and join, and a room only changes when a counselor
// is assigned, so lookups by id are served from the cache. Assignments made
// on another node become visible once the entry expires.
type CachedRoomRepository struct {
	RoomRepository
	rooms *cache.Cache[models.Room]
}

func NewCachedRoomRepository(next RoomRepository, ttl time.Duration, maxItems int) *CachedRoomRepository {
	return &CachedRoomRepository{
		RoomRepository: next,
		rooms: cache.New[models.Room](cache.Options{
			TTL:             ttl,
			MaxItems:        maxItems,
			CleanupInterval: 2 * ttl,
		}),
	}
}

func (r *CachedRoomRepository) GetByID(ctx context.Context, id string) (*models.Room, error) {
	if room, ok := r.rooms.Get(id); ok {
		return &room, nil
	}
	room, err := r.RoomRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.rooms.Set(id, *room)
	return room, nil
}

func (r *CachedRoomRepository) UpdateCounselor(ctx context.Context, roomID, counselorID string) (*models.Room, error) {
	r.rooms.Delete(roomID)
	room, err := r.RoomRepository.UpdateCounselor(ctx, roomID, counselorID)
	if err != nil {
		return nil, err
	}
	r.rooms.Set(roomID, *room)
	return room, nil
}

// Close stops the cache sweeps
func (r *CachedRoomRepository) Close() {
	r.rooms.Close()
}
