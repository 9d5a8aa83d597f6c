package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/room-relay/internal/apperror"
	"github.com/rocketscienceinc/room-relay/internal/entity"
)

const (
	roomKeyPrefix   = "room:"
	maxWatchRetries = 5
)

var errTooManyConflicts = errors.New("too many concurrent updates")

// redisRecord keeps Data as a string so the document survives marshalling byte for byte.
type redisRecord struct {
	Code      string      `json:"code"`
	Mode      entity.Mode `json:"mode"`
	Data      string      `json:"data"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// dbRoom keeps one JSON document per room under room:CODE. Expiry is the native key TTL.
type dbRoom struct {
	client *redis.Client
	ttl    time.Duration
	now    clock
}

func NewRedisRoomRepository(client *redis.Client, ttl time.Duration) RoomRepository {
	return &dbRoom{
		client: client,
		ttl:    ttl,
		now:    systemClock,
	}
}

func (that *dbRoom) Create(ctx context.Context, room *entity.Room) error {
	room.Touch(that.now(), that.ttl)

	roomJSON, err := marshalRoom(room)
	if err != nil {
		return err
	}

	created, err := that.client.SetNX(ctx, roomKeyPrefix+room.Code, roomJSON, that.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: failed to set room: %w", apperror.ErrStoreUnavailable, err)
	}

	if !created {
		return fmt.Errorf("%w: %s", apperror.ErrDuplicateCode, room.Code)
	}

	return nil
}

func (that *dbRoom) GetByCode(ctx context.Context, code string) (*entity.Room, error) {
	response, err := that.client.Get(ctx, roomKeyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w: failed to get room: %w", apperror.ErrStoreUnavailable, err)
	}

	return unmarshalRoom(response)
}

func (that *dbRoom) Update(ctx context.Context, code string, data json.RawMessage) (*entity.Room, error) {
	roomKey := roomKeyPrefix + code

	var updated *entity.Room

	txf := func(tx *redis.Tx) error {
		response, err := tx.Get(ctx, roomKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return apperror.ErrNotFound
		}

		if err != nil {
			return fmt.Errorf("%w: failed to get room: %w", apperror.ErrStoreUnavailable, err)
		}

		room, err := unmarshalRoom(response)
		if err != nil {
			return err
		}

		room.Data = data
		room.Touch(that.now(), that.ttl)

		roomJSON, err := marshalRoom(room)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, roomKey, roomJSON, that.ttl)
			return nil
		})
		if err != nil {
			return err //nolint: wrapcheck // TxFailedErr must reach the retry loop unwrapped
		}

		updated = room

		return nil
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := that.client.Watch(ctx, txf, roomKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) || errors.Is(err, apperror.ErrStoreUnavailable) {
				return nil, err
			}

			return nil, fmt.Errorf("%w: failed to update room: %w", apperror.ErrStoreUnavailable, err)
		}

		return updated, nil
	}

	return nil, fmt.Errorf("failed to update room %s: %w", code, errTooManyConflicts)
}

func marshalRoom(room *entity.Room) ([]byte, error) {
	roomJSON, err := json.Marshal(redisRecord{
		Code:      room.Code,
		Mode:      room.Mode,
		Data:      string(room.Data),
		CreatedAt: room.CreatedAt,
		ExpiresAt: room.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("could not marshal room: %w", err)
	}

	return roomJSON, nil
}

func unmarshalRoom(raw []byte) (*entity.Room, error) {
	var record redisRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &entity.Room{
		Code:      record.Code,
		Mode:      record.Mode,
		Data:      json.RawMessage(record.Data),
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}
