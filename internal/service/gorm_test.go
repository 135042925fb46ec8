package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"victim-support/backend/internal/models"
	"victim-support/backend/internal/repository"
)

// newSQLChat wires the services onto the gorm repositories over sqlite
func newSQLChat(t *testing.T) (*ChatService, *RoomRegistry, *ReadTracker) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "chat.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Room{}, &models.Message{}, &models.MessageRead{}))

	log := testLogger()
	rooms := repository.NewGormRoomRepository(db)
	messages := repository.NewGormMessageRepository(db)

	registry := NewRoomRegistry(rooms, messages, log)
	reads := NewReadTracker(rooms, messages, log)
	chat := NewChatService(
		registry,
		NewMessageStore(rooms, messages, log),
		reads,
		NewAttachmentIngester(rooms, IngesterConfig{StorageRoot: t.TempDir(), MaxSize: 1 << 20}, log),
		&recordingPublisher{},
		"A1",
		log,
	)
	return chat, registry, reads
}

func TestChatOverSQL(t *testing.T) {
	ctx := context.Background()
	chat, registry, reads := newSQLChat(t)
	anonymous, admin := models.Anonymous("ANONYMOUS482"), models.Admin("A1")

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room, err := chat.ResolveRoom(ctx, anonymous)
			if assert.NoError(t, err) {
				ids[i] = room.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, "room-ANONYMOUS482", id)
	}

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := chat.SendText(ctx, "room-ANONYMOUS482", anonymous, fmt.Sprintf("m%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	_, err := chat.SendText(ctx, "room-ANONYMOUS482", admin, "we are here")
	require.NoError(t, err)

	history, err := chat.History(ctx, "room-ANONYMOUS482", anonymous)
	require.NoError(t, err)
	require.Len(t, history, 21)
	seen := make(map[string]struct{})
	for i, m := range history {
		assert.Equal(t, int64(i+1), m.Seq)
		seen[m.ID] = struct{}{}
	}
	assert.Len(t, seen, 21)

	summaries, err := registry.ListForStaff(ctx, admin)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "we are here", summaries[0].LastMessage)
	assert.Equal(t, int64(20), summaries[0].UnreadCount)

	n, err := chat.MarkRead(ctx, "room-ANONYMOUS482", admin)
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)
	n, err = chat.MarkRead(ctx, "room-ANONYMOUS482", admin)
	require.NoError(t, err)
	assert.Zero(t, n)

	unread, err := reads.UnreadCount(ctx, "room-ANONYMOUS482", anonymous, models.RoleAdmin, models.RoleCounselor)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}
