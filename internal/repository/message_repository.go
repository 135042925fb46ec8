package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"victim-support/backend/internal/models"
)

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Append locks the room row so sequence numbers are gap-free and totally
// ordered even with several server instances writing to one room.
func (r *GormMessageRepository) Append(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", msg.RoomID).
			First(&room).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		msg.Seq = room.MessageSeq + 1
		// keep timestamps non-decreasing along the sequence
		if msg.Timestamp.Before(room.UpdatedAt) {
			msg.Timestamp = room.UpdatedAt
		}

		err = tx.Model(&models.Room{}).
			Where("id = ?", room.ID).
			Updates(map[string]any{"message_seq": msg.Seq, "updated_at": msg.Timestamp}).Error
		if err != nil {
			return fmt.Errorf("advance room sequence: %w", err)
		}

		if err := tx.Omit("Reads").Create(msg).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
}

func (r *GormMessageRepository) ListByRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Preload("Reads", func(db *gorm.DB) *gorm.DB {
			return db.Order("read_at ASC")
		}).
		Where("room_id = ?", roomID).
		Order("seq ASC").
		Find(&messages).Error
	return messages, err
}

func (r *GormMessageRepository) Last(ctx context.Context, roomID string) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq DESC").
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &message, nil
}

// MarkRead is a single insert-if-absent statement, so concurrent and
// repeated calls for the same reader never duplicate an annotation.
func (r *GormMessageRepository) MarkRead(ctx context.Context, roomID string, reader models.Identity, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
		INSERT INTO chat_message_reads (message_id, reader_role, reader_id, read_at)
		SELECT m.id, ?, ?, ?
		FROM chat_messages m
		WHERE m.room_id = ?
		  AND NOT (m.sender_role = ? AND m.sender_id = ?)
		ON CONFLICT DO NOTHING`,
		reader.Role, reader.ID, at,
		roomID,
		reader.Role, reader.ID,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Activity answers for all rooms in two statements, whatever their number
func (r *GormMessageRepository) Activity(ctx context.Context, roomIDs []string, reader models.Identity, senderRoles []models.Role) (map[string]RoomActivity, error) {
	activity := make(map[string]RoomActivity, len(roomIDs))
	if len(roomIDs) == 0 {
		return activity, nil
	}
	db := r.db.WithContext(ctx)

	var latest []models.Message
	err := db.Raw(`
		SELECT m.* FROM chat_messages m
		JOIN (
			SELECT room_id, MAX(seq) AS seq FROM chat_messages
			WHERE room_id IN ?
			GROUP BY room_id
		) l ON l.room_id = m.room_id AND l.seq = m.seq`,
		roomIDs,
	).Scan(&latest).Error
	if err != nil {
		return nil, fmt.Errorf("latest messages: %w", err)
	}
	for i := range latest {
		activity[latest[i].RoomID] = RoomActivity{Last: &latest[i]}
	}

	if len(senderRoles) == 0 {
		return activity, nil
	}

	var unread []struct {
		RoomID string
		Unread int64
	}
	err = db.Model(&models.Message{}).
		Select("room_id, COUNT(*) AS unread").
		Where("room_id IN ? AND sender_role IN ?", roomIDs, senderRoles).
		Where("NOT (sender_role = ? AND sender_id = ?)", reader.Role, reader.ID).
		Where(`NOT EXISTS (
			SELECT 1 FROM chat_message_reads r
			WHERE r.message_id = chat_messages.id AND r.reader_role = ? AND r.reader_id = ?)`,
			reader.Role, reader.ID).
		Group("room_id").
		Scan(&unread).Error
	if err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}
	for _, row := range unread {
		a := activity[row.RoomID]
		a.Unread = row.Unread
		activity[row.RoomID] = a
	}
	return activity, nil
}

func (r *GormMessageRepository) CountUnread(ctx context.Context, roomID string, reader models.Identity, senderRoles []models.Role) (int64, error) {
	if len(senderRoles) == 0 {
		return 0, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("room_id = ? AND sender_role IN ?", roomID, senderRoles).
		Where("NOT (sender_role = ? AND sender_id = ?)", reader.Role, reader.ID).
		Where(`NOT EXISTS (
			SELECT 1 FROM chat_message_reads r
			WHERE r.message_id = chat_messages.id AND r.reader_role = ? AND r.reader_id = ?)`,
			reader.Role, reader.ID).
		Count(&count).Error
	return count, err
}
