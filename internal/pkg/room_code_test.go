package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/room-relay/internal/apperror"
)

func TestGenerateRoomCode(t *testing.T) {
	code, err := GenerateRoomCode()

	require.NoError(t, err)
	assert.Len(t, code, roomCodeLength)

	normalized, err := NormalizeRoomCode(code)
	require.NoError(t, err)
	assert.Equal(t, code, normalized)
}

func TestNormalizeRoomCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "upper case kept", input: "AB12CD", want: "AB12CD"},
		{name: "lower case folded", input: "ab12cd", want: "AB12CD"},
		{name: "surrounding spaces trimmed", input: " ab12cd ", want: "AB12CD"},
		{name: "empty", input: "", wantErr: apperror.ErrMissingRoomCode},
		{name: "too short", input: "AB1", wantErr: apperror.ErrInvalidRoomCode},
		{name: "too long", input: "ABCDEFGHIJKLM", wantErr: apperror.ErrInvalidRoomCode},
		{name: "symbols", input: "AB-12C", wantErr: apperror.ErrInvalidRoomCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRoomCode(tt.input)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
