package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rocketscienceinc/room-relay/internal/apperror"
	"github.com/rocketscienceinc/room-relay/internal/entity"
	"github.com/rocketscienceinc/room-relay/internal/relay"
)

type snapshotService interface {
	CreateRoom(ctx context.Context, code string, mode entity.Mode, data json.RawMessage) (*entity.Room, error)
	GetRoom(ctx context.Context, code string) (*entity.Room, error)
	UpdateRoom(ctx context.Context, code string, data json.RawMessage) (*entity.Room, error)
	NewRoomCode(ctx context.Context) (string, error)
}

type storeHealth interface {
	Degraded() bool
}

type relayStats interface {
	Stats(ctx context.Context) (relay.Stats, error)
}

type createRoomRequest struct {
	Code string          `json:"code" binding:"required"`
	Mode entity.Mode     `json:"mode" binding:"required"`
	Data json.RawMessage `json:"data" binding:"required"`
}

type updateRoomRequest struct {
	Data json.RawMessage `json:"data" binding:"required"`
}

type Handlers struct {
	logger    *slog.Logger
	snapshots snapshotService
	store     storeHealth
	relay     relayStats
}

func NewHandlers(logger *slog.Logger, snapshots snapshotService, store storeHealth, relay relayStats) *Handlers {
	return &Handlers{
		logger:    logger.With("component", "rest"),
		snapshots: snapshots,
		store:     store,
		relay:     relay,
	}
}

func (that *Handlers) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// Health - degraded means rooms currently live only in process memory.
func (that *Handlers) Health(c *gin.Context) {
	stats, err := that.relay.Stats(c.Request.Context())
	if err != nil {
		that.logger.Error("failed to get relay stats", "method", "Health", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "degraded": that.store.Degraded()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"degraded":    that.store.Degraded(),
		"rooms":       stats.Rooms,
		"connections": stats.Connections,
	})
}

func (that *Handlers) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	room, err := that.snapshots.CreateRoom(c.Request.Context(), req.Code, req.Mode, req.Data)
	if err != nil {
		that.abortWithError(c, "CreateRoom", err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (that *Handlers) GetRoom(c *gin.Context) {
	room, err := that.snapshots.GetRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		that.abortWithError(c, "GetRoom", err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (that *Handlers) UpdateRoom(c *gin.Context) {
	var req updateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	room, err := that.snapshots.UpdateRoom(c.Request.Context(), c.Param("code"), req.Data)
	if err != nil {
		that.abortWithError(c, "UpdateRoom", err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (that *Handlers) NewRoomCode(c *gin.Context) {
	code, err := that.snapshots.NewRoomCode(c.Request.Context())
	if err != nil {
		that.abortWithError(c, "NewRoomCode", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": code})
}

func (that *Handlers) abortWithError(c *gin.Context, method string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		that.logger.Error("request failed", "method", method, "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrDuplicateCode):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrMissingRoomCode),
		errors.Is(err, apperror.ErrInvalidRoomCode),
		errors.Is(err, apperror.ErrInvalidMode),
		errors.Is(err, apperror.ErrInvalidData):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
