package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rocketscienceinc/room-relay/internal/apperror"
)

type Mode string

const (
	ModeSingle Mode = "SINGLE"
	ModeMulti  Mode = "MULTI"
)

// MaxPlayers - maximum occupancy of a room in this mode. Enforced by clients, not the server.
func (that Mode) MaxPlayers() int {
	switch that {
	case ModeSingle:
		return 1
	case ModeMulti:
		return 2
	default:
		return 0
	}
}

func (that Mode) Validate() error {
	if that.MaxPlayers() == 0 {
		return fmt.Errorf("%w: %q", apperror.ErrInvalidMode, string(that))
	}

	return nil
}

// Room is the durable snapshot of one room. Data is never interpreted server-side.
type Room struct {
	Code      string          `json:"code"`
	Mode      Mode            `json:"mode"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Touch - restarts the expiry window. Every update refreshes CreatedAt.
func (that *Room) Touch(now time.Time, ttl time.Duration) {
	that.CreatedAt = now.UTC()
	that.ExpiresAt = that.CreatedAt.Add(ttl)
}

func (that *Room) IsExpired(now time.Time) bool {
	if that.ExpiresAt.IsZero() {
		return false
	}

	return !now.Before(that.ExpiresAt)
}

// Clone - deep copy, so callers never share the Data buffer with a store.
func (that *Room) Clone() *Room {
	cp := *that
	cp.Data = append(json.RawMessage(nil), that.Data...)

	return &cp
}

// ValidateData - data must be well-formed JSON and nothing more.
func ValidateData(data json.RawMessage) error {
	if len(data) == 0 || !json.Valid(data) {
		return apperror.ErrInvalidData
	}

	return nil
}
