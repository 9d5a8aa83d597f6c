package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/rocketscienceinc/room-relay/internal/apperror"
	"github.com/rocketscienceinc/room-relay/internal/entity"
)

// FallbackRoomRepository serves from the durable store until it fails with
// ErrStoreUnavailable, then switches to memory for the rest of the process lifetime.
// Rooms written only to the durable store are not visible after the switch.
type FallbackRoomRepository struct {
	logger   *slog.Logger
	durable  RoomRepository
	memory   *InMemoryRoomRepository
	degraded atomic.Bool
}

// NewFallbackRoomRepository - durable may be nil, in which case the repository starts degraded.
func NewFallbackRoomRepository(logger *slog.Logger, durable RoomRepository, memory *InMemoryRoomRepository) *FallbackRoomRepository {
	repo := &FallbackRoomRepository{
		logger:  logger.With("component", "snapshot-store"),
		durable: durable,
		memory:  memory,
	}

	if durable == nil {
		repo.degrade(apperror.ErrStoreUnavailable)
	}

	return repo
}

func (r *FallbackRoomRepository) Degraded() bool {
	return r.degraded.Load()
}

func (r *FallbackRoomRepository) Create(ctx context.Context, room *entity.Room) error {
	if !r.Degraded() {
		err := r.durable.Create(ctx, room)
		if !r.shouldDegrade(ctx, err) {
			return err
		}
	}

	return r.memory.Create(ctx, room)
}

func (r *FallbackRoomRepository) GetByCode(ctx context.Context, code string) (*entity.Room, error) {
	if !r.Degraded() {
		room, err := r.durable.GetByCode(ctx, code)
		if !r.shouldDegrade(ctx, err) {
			return room, err
		}
	}

	return r.memory.GetByCode(ctx, code)
}

func (r *FallbackRoomRepository) Update(ctx context.Context, code string, data json.RawMessage) (*entity.Room, error) {
	if !r.Degraded() {
		room, err := r.durable.Update(ctx, code, data)
		if !r.shouldDegrade(ctx, err) {
			return room, err
		}
	}

	return r.memory.Update(ctx, code, data)
}

func (r *FallbackRoomRepository) shouldDegrade(ctx context.Context, err error) bool {
	if err == nil || !errors.Is(err, apperror.ErrStoreUnavailable) {
		return false
	}

	// a cancelled request says nothing about the backend
	if ctx.Err() != nil {
		return false
	}

	r.degrade(err)

	return true
}

func (r *FallbackRoomRepository) degrade(cause error) {
	if r.degraded.Swap(true) {
		return
	}

	r.logger.Warn("durable snapshot store unavailable, rooms are kept in memory until restart", "error", cause)
}
