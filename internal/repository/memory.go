package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rocketscienceinc/room-relay/internal/apperror"
	"github.com/rocketscienceinc/room-relay/internal/entity"
)

// InMemoryRoomRepository lives as long as the process. It backs the degraded mode.
type InMemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]*entity.Room
	ttl   time.Duration
	now   clock
}

func NewInMemoryRoomRepository(ttl time.Duration) *InMemoryRoomRepository {
	return &InMemoryRoomRepository{
		rooms: make(map[string]*entity.Room),
		ttl:   ttl,
		now:   systemClock,
	}
}

func (r *InMemoryRoomRepository) Create(ctx context.Context, room *entity.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if existing, ok := r.rooms[room.Code]; ok && !existing.IsExpired(now) {
		return fmt.Errorf("%w: %s", apperror.ErrDuplicateCode, room.Code)
	}

	room.Touch(now, r.ttl)
	r.rooms[room.Code] = room.Clone()

	return nil
}

func (r *InMemoryRoomRepository) GetByCode(ctx context.Context, code string) (*entity.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[code]
	if !ok || room.IsExpired(r.now()) {
		return nil, apperror.ErrNotFound
	}

	return room.Clone(), nil
}

func (r *InMemoryRoomRepository) Update(ctx context.Context, code string, data json.RawMessage) (*entity.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	room, ok := r.rooms[code]
	if !ok || room.IsExpired(now) {
		return nil, apperror.ErrNotFound
	}

	room.Data = append(json.RawMessage(nil), data...)
	room.Touch(now, r.ttl)

	return room.Clone(), nil
}

// Sweep - drops expired rooms, returns how many were removed.
func (r *InMemoryRoomRepository) Sweep(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	var removed int64
	for code, room := range r.rooms {
		if room.IsExpired(now) {
			delete(r.rooms, code)
			removed++
		}
	}

	return removed, nil
}

func (r *InMemoryRoomRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
