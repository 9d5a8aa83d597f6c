package apperror

import "errors"

var (
	ErrDuplicateCode    = errors.New("room code already exists")
	ErrNotFound         = errors.New("room not found")
	ErrStoreUnavailable = errors.New("snapshot store unavailable")
	ErrMalformedMessage = errors.New("malformed message")
	ErrMissingRoomCode  = errors.New("room code is required")
	ErrInvalidRoomCode  = errors.New("invalid room code")
	ErrInvalidMode      = errors.New("invalid room mode")
	ErrInvalidData      = errors.New("room data is not valid json")
)
