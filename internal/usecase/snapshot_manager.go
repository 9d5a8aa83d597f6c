package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/room-relay/internal/apperror"
	"github.com/rocketscienceinc/room-relay/internal/entity"
	"github.com/rocketscienceinc/room-relay/internal/pkg"
)

const maxCodeAttempts = 10

var ErrCodeSpaceExhausted = errors.New("could not find a free room code")

type roomRepo interface {
	Create(ctx context.Context, room *entity.Room) error
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
	Update(ctx context.Context, code string, data json.RawMessage) (*entity.Room, error)
}

// SnapshotManager - create/read/update of durable room snapshots. Room data is validated as JSON and nothing more.
type SnapshotManager struct {
	logger   *slog.Logger
	roomRepo roomRepo

	generateCode func() (string, error)
}

func NewSnapshotManager(logger *slog.Logger, roomRepo roomRepo) *SnapshotManager {
	return &SnapshotManager{
		logger:   logger.With("component", "snapshot-manager"),
		roomRepo: roomRepo,

		generateCode: pkg.GenerateRoomCode,
	}
}

func (that *SnapshotManager) CreateRoom(ctx context.Context, code string, mode entity.Mode, data json.RawMessage) (*entity.Room, error) {
	code, err := pkg.NormalizeRoomCode(code)
	if err != nil {
		return nil, err
	}

	if err = mode.Validate(); err != nil {
		return nil, err
	}

	if err = entity.ValidateData(data); err != nil {
		return nil, err
	}

	room := &entity.Room{
		Code: code,
		Mode: mode,
		Data: data,
	}

	if err = that.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	that.logger.Info("room created", "code", code, "mode", mode)

	return room, nil
}

func (that *SnapshotManager) GetRoom(ctx context.Context, code string) (*entity.Room, error) {
	code, err := pkg.NormalizeRoomCode(code)
	if err != nil {
		return nil, err
	}

	room, err := that.roomRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return room, nil
}

func (that *SnapshotManager) UpdateRoom(ctx context.Context, code string, data json.RawMessage) (*entity.Room, error) {
	code, err := pkg.NormalizeRoomCode(code)
	if err != nil {
		return nil, err
	}

	if err = entity.ValidateData(data); err != nil {
		return nil, err
	}

	room, err := that.roomRepo.Update(ctx, code, data)
	if err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	return room, nil
}

// PersistState - stores a full-state payload received over the relay. Same contract as UpdateRoom.
func (that *SnapshotManager) PersistState(ctx context.Context, code string, state json.RawMessage) error {
	if _, err := that.UpdateRoom(ctx, code, state); err != nil {
		return err
	}

	return nil
}

// NewRoomCode - a generated code that no live room uses yet.
func (that *SnapshotManager) NewRoomCode(ctx context.Context) (string, error) {
	log := that.logger.With("method", "NewRoomCode")

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := that.generateCode()
		if err != nil {
			return "", err
		}

		_, err = that.roomRepo.GetByCode(ctx, code)
		if errors.Is(err, apperror.ErrNotFound) {
			return code, nil
		}

		if err != nil {
			return "", fmt.Errorf("failed to check room code: %w", err)
		}

		log.Debug("collision on room code, regenerating", "code", code)
	}

	return "", ErrCodeSpaceExhausted
}
