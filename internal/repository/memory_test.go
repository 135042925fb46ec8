package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"victim-support/backend/internal/models"
)

func seedRoom(t *testing.T, s *MemoryStore, victimID string) *models.Room {
	t.Helper()
	c, err := models.NewRegisteredCounterpart(victimID)
	require.NoError(t, err)
	room := models.NewRoom(c, "A1", time.Now())
	require.NoError(t, s.Create(context.Background(), room))
	return room
}

func TestMemoryStoreCreateDuplicate(t *testing.T) {
	s := NewMemoryStore()
	room := seedRoom(t, s, "64f1a2b3c4d5e6f708192a01")

	err := s.Create(context.Background(), room)
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := s.GetByCounterpart(context.Background(), "64f1a2b3c4d5e6f708192a01")
	require.NoError(t, err)
	assert.Equal(t, "room-64f1a2b3c4d5e6f708192a01", got.ID)

	_, err = s.GetByID(context.Background(), "room-nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreAppendAssignsSequence(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	room := seedRoom(t, s, "64f1a2b3c4d5e6f708192a01")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := models.TextDraft(models.Victim("64f1a2b3c4d5e6f708192a01"), fmt.Sprintf("m%d", i)).
				ToMessage(fmt.Sprintf("id-%02d", i), room.ID, 0, time.Now())
			assert.NoError(t, s.Append(ctx, msg))
		}(i)
	}
	wg.Wait()

	messages, err := s.ListByRoom(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, messages, 50)
	for i, m := range messages {
		assert.Equal(t, int64(i+1), m.Seq)
		if i > 0 {
			assert.False(t, m.Timestamp.Before(messages[i-1].Timestamp))
		}
	}

	orphan := models.TextDraft(models.Victim("64f1a2b3c4d5e6f708192a01"), "x").ToMessage("id-x", "room-missing", 0, time.Now())
	assert.ErrorIs(t, s.Append(ctx, orphan), ErrNotFound)
}

func TestMemoryStoreMarkRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	room := seedRoom(t, s, "64f1a2b3c4d5e6f708192a01")

	require.NoError(t, s.Append(ctx, models.TextDraft(models.Victim("64f1a2b3c4d5e6f708192a01"), "hi").ToMessage("1", room.ID, 0, time.Now())))
	require.NoError(t, s.Append(ctx, models.TextDraft(models.Admin("A1"), "hello").ToMessage("2", room.ID, 0, time.Now())))

	unread, err := s.CountUnread(ctx, room.ID, models.Admin("A1"), []models.Role{models.RoleVictim})
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	n, err := s.MarkRead(ctx, room.ID, models.Admin("A1"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.MarkRead(ctx, room.ID, models.Admin("A1"), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	unread, err = s.CountUnread(ctx, room.ID, models.Admin("A1"), []models.Role{models.RoleVictim})
	require.NoError(t, err)
	assert.Zero(t, unread)

	last, err := s.Last(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", last.Content)
	assert.False(t, last.HasRead(models.Admin("A1")))
}

func TestMemoryStoreListForStaff(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedRoom(t, s, "64f1a2b3c4d5e6f708192a01")
	seedRoom(t, s, "64f1a2b3c4d5e6f708192a02")

	rooms, err := s.ListForStaff(ctx, models.Admin("A1"))
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	_, err = s.UpdateCounselor(ctx, "room-64f1a2b3c4d5e6f708192a02", "C1")
	require.NoError(t, err)

	rooms, err = s.ListForStaff(ctx, models.Counselor("C1"))
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "room-64f1a2b3c4d5e6f708192a02", rooms[0].ID)

	_, err = s.UpdateCounselor(ctx, "room-missing", "C1")
	assert.ErrorIs(t, err, ErrNotFound)
}
