package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"victim-support/backend/internal/models"
)

type GormRoomRepository struct {
	db *gorm.DB
}

func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

// Create inserts the room unless its id or counterpart is already taken
func (r *GormRoomRepository) Create(ctx context.Context, room *models.Room) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(room)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("create room: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *GormRoomRepository) GetByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (r *GormRoomRepository) GetByCounterpart(ctx context.Context, counterpartID string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).Where("counterpart_id = ?", counterpartID).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (r *GormRoomRepository) UpdateCounselor(ctx context.Context, roomID, counselorID string) (*models.Room, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("counselor_id", counselorID)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, roomID)
}

func (r *GormRoomRepository) ListForStaff(ctx context.Context, staff models.Identity) ([]models.Room, error) {
	query := r.db.WithContext(ctx).Model(&models.Room{})
	switch staff.Role {
	case models.RoleAdmin:
		query = query.Where("admin_id = ?", staff.ID)
	case models.RoleCounselor:
		query = query.Where("counselor_id = ?", staff.ID)
	default:
		return nil, nil
	}

	var rooms []models.Room
	err := query.Order("updated_at DESC").Find(&rooms).Error
	return rooms, err
}

func (r *GormRoomRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
