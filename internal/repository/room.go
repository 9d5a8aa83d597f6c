package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rocketscienceinc/room-relay/internal/entity"
)

// RoomRepository - snapshot store. Implementations enforce code uniqueness and expiry themselves.
type RoomRepository interface {
	Create(ctx context.Context, room *entity.Room) error
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
	// Update replaces data and restarts the room's expiry window.
	Update(ctx context.Context, code string, data json.RawMessage) (*entity.Room, error)
}

type clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
