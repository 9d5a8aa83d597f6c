package pkg

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/rocketscienceinc/room-relay/internal/apperror"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 6

	minRoomCodeLength = 4
	maxRoomCodeLength = 12
)

// GenerateRoomCode - generates a short upper-case room code.
func GenerateRoomCode() (string, error) {
	code, err := gonanoid.Generate(roomCodeAlphabet, roomCodeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate room code: %w", err)
	}

	return code, nil
}

// NormalizeRoomCode - room codes are case-insensitive, stored upper-case.
func NormalizeRoomCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", apperror.ErrMissingRoomCode
	}

	if len(code) < minRoomCodeLength || len(code) > maxRoomCodeLength {
		return "", fmt.Errorf("%w: %q", apperror.ErrInvalidRoomCode, code)
	}

	for _, r := range code {
		if !strings.ContainsRune(roomCodeAlphabet, r) {
			return "", fmt.Errorf("%w: %q", apperror.ErrInvalidRoomCode, code)
		}
	}

	return code, nil
}
