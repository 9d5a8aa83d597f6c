package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rocketscienceinc/room-relay/internal/apperror"
	"github.com/rocketscienceinc/room-relay/internal/entity"
)

type roomModel struct {
	Code      string    `gorm:"size:12;primaryKey"`
	Mode      string    `gorm:"size:16;not null"`
	Data      string    `gorm:"type:json;not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
}

func (roomModel) TableName() string {
	return "rooms"
}

// PostgresRoomRepository stores rooms in one table. Data is a json column, not jsonb, so it is echoed byte for byte.
type PostgresRoomRepository struct {
	db  *gorm.DB
	ttl time.Duration
	now clock
}

func NewPostgresRoomRepository(db *gorm.DB, ttl time.Duration) *PostgresRoomRepository {
	return &PostgresRoomRepository{
		db:  db,
		ttl: ttl,
		now: systemClock,
	}
}

func (r *PostgresRoomRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&roomModel{}); err != nil {
		return fmt.Errorf("%w: can't migrate rooms table: %w", apperror.ErrStoreUnavailable, err)
	}

	return nil
}

func (r *PostgresRoomRepository) Create(ctx context.Context, room *entity.Room) error {
	now := r.now()
	room.Touch(now, r.ttl)
	model := toModel(room)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// an expired row that the sweeper has not reached yet must not block the code
		if err := tx.Where("code = ? AND expires_at <= ?", room.Code, now).Delete(&roomModel{}).Error; err != nil {
			return err
		}

		return tx.Create(&model).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", apperror.ErrDuplicateCode, room.Code)
	}

	if err != nil {
		return fmt.Errorf("%w: can't create room: %w", apperror.ErrStoreUnavailable, err)
	}

	return nil
}

func (r *PostgresRoomRepository) GetByCode(ctx context.Context, code string) (*entity.Room, error) {
	var model roomModel

	err := r.db.WithContext(ctx).
		Where("code = ? AND expires_at > ?", code, r.now()).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w: can't find room: %w", apperror.ErrStoreUnavailable, err)
	}

	return model.toEntity(), nil
}

func (r *PostgresRoomRepository) Update(ctx context.Context, code string, data json.RawMessage) (*entity.Room, error) {
	now := r.now()

	var model roomModel

	result := r.db.WithContext(ctx).
		Model(&model).
		Clauses(clause.Returning{}).
		Where("code = ? AND expires_at > ?", code, now).
		Updates(map[string]any{
			"data":       string(data),
			"created_at": now,
			"expires_at": now.Add(r.ttl),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("%w: can't update room: %w", apperror.ErrStoreUnavailable, result.Error)
	}

	if result.RowsAffected == 0 {
		return nil, apperror.ErrNotFound
	}

	return model.toEntity(), nil
}

func (r *PostgresRoomRepository) Sweep(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", r.now()).Delete(&roomModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("%w: can't delete expired rooms: %w", apperror.ErrStoreUnavailable, result.Error)
	}

	return result.RowsAffected, nil
}

func toModel(room *entity.Room) roomModel {
	return roomModel{
		Code:      room.Code,
		Mode:      string(room.Mode),
		Data:      string(room.Data),
		CreatedAt: room.CreatedAt,
		ExpiresAt: room.ExpiresAt,
	}
}

func (that roomModel) toEntity() *entity.Room {
	return &entity.Room{
		Code:      that.Code,
		Mode:      entity.Mode(that.Mode),
		Data:      json.RawMessage(that.Data),
		CreatedAt: that.CreatedAt.UTC(),
		ExpiresAt: that.ExpiresAt.UTC(),
	}
}
