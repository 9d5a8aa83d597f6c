package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/room-relay/internal/apperror"
)

func TestParseEnvelope(t *testing.T) {
	t.Run("Extracts the routing tag", func(t *testing.T) {
		envelope, err := ParseEnvelope([]byte(`{"type":"SYNC_NOTES","payload":"suspect lied"}`))

		require.NoError(t, err)
		assert.Equal(t, TypeSyncNotes, envelope.Type)
		assert.JSONEq(t, `"suspect lied"`, string(envelope.Payload))
	})

	t.Run("Well-formed non-object yields an empty envelope", func(t *testing.T) {
		envelope, err := ParseEnvelope([]byte(`[1,2,3]`))

		require.NoError(t, err)
		assert.Empty(t, envelope.Type)
	})

	t.Run("Malformed JSON returns ErrMalformedMessage", func(t *testing.T) {
		envelope, err := ParseEnvelope([]byte(`{"type":`))

		require.ErrorIs(t, err, apperror.ErrMalformedMessage)
		assert.Nil(t, envelope)
	})

	t.Run("Invalid UTF-8 inside a string returns ErrMalformedMessage", func(t *testing.T) {
		envelope, err := ParseEnvelope([]byte("{\"type\":\"SYNC_NOTES\",\"payload\":\"\xff\xfe\"}"))

		require.ErrorIs(t, err, apperror.ErrMalformedMessage)
		assert.Nil(t, envelope)
	})
}

func TestEnvelope_Decode(t *testing.T) {
	t.Run("Notes payload", func(t *testing.T) {
		envelope := &Envelope{Type: TypeSyncNotes, Payload: []byte(`"suspect lied"`)}

		decoded, err := envelope.Decode()

		require.NoError(t, err)
		assert.Equal(t, NotesPayload("suspect lied"), decoded)
	})

	t.Run("Chat payload", func(t *testing.T) {
		envelope := &Envelope{Type: TypeSyncChat, Payload: []byte(`{"subject":"butler","message":{"role":"user","text":"where were you?"}}`)}

		decoded, err := envelope.Decode()

		require.NoError(t, err)
		chat, ok := decoded.(ChatPayload)
		require.True(t, ok)
		assert.Equal(t, "butler", chat.Subject)
		assert.JSONEq(t, `{"role":"user","text":"where were you?"}`, string(chat.Message))
	})

	t.Run("State payload stays raw", func(t *testing.T) {
		envelope := &Envelope{Type: TypeSyncState, Payload: []byte(`{"notes":"x"}`)}

		decoded, err := envelope.Decode()

		require.NoError(t, err)
		assert.Equal(t, StatePayload(`{"notes":"x"}`), decoded)
	})

	t.Run("Unknown type returns ErrMalformedMessage", func(t *testing.T) {
		envelope := &Envelope{Type: "PING"}

		_, err := envelope.Decode()

		require.ErrorIs(t, err, apperror.ErrMalformedMessage)
	})

	t.Run("Wrong payload shape returns ErrMalformedMessage", func(t *testing.T) {
		envelope := &Envelope{Type: TypeSyncNotes, Payload: []byte(`{"a":1}`)}

		_, err := envelope.Decode()

		require.ErrorIs(t, err, apperror.ErrMalformedMessage)
	})
}
