package entity

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/rocketscienceinc/room-relay/internal/apperror"
)

type MessageType string

const (
	TypeSyncState   MessageType = "SYNC_STATE"
	TypeSyncNotes   MessageType = "SYNC_NOTES"
	TypeSyncChat    MessageType = "SYNC_CHAT"
	TypeSyncVerdict MessageType = "SYNC_VERDICT"
)

// Envelope represents a relay message. The relay reads only Type; Payload is opaque to it.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Payload variants below are for consumers that interpret messages, such as Go clients and tests.
// The relay itself never decodes them.

// NotesPayload - free-text notes, sent whole on every change.
type NotesPayload string

// ChatPayload - a single message appended to the chat history of one subject.
type ChatPayload struct {
	Subject string          `json:"subject"`
	Message json.RawMessage `json:"message"`
}

// VerdictPayload - the result object of a finished round.
type VerdictPayload json.RawMessage

// StatePayload - the full application state, same shape as Room.Data.
type StatePayload json.RawMessage

// ParseEnvelope - checks raw is well-formed UTF-8 JSON and extracts the routing tag.
// A well-formed message that is not an object yields an empty envelope.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	// relayed as a text frame; browsers fail the whole connection on invalid UTF-8
	if !utf8.Valid(raw) {
		return nil, apperror.ErrMalformedMessage
	}

	if !json.Valid(raw) {
		return nil, apperror.ErrMalformedMessage
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &Envelope{}, nil //nolint: nilerr // only objects carry a type
	}

	return &envelope, nil
}

// Decode - interprets the payload according to the message type. Consumer side only.
func (that *Envelope) Decode() (any, error) {
	switch that.Type {
	case TypeSyncState:
		return StatePayload(that.Payload), nil
	case TypeSyncVerdict:
		return VerdictPayload(that.Payload), nil
	case TypeSyncNotes:
		var notes NotesPayload
		if err := json.Unmarshal(that.Payload, &notes); err != nil {
			return nil, fmt.Errorf("%w: %w", apperror.ErrMalformedMessage, err)
		}

		return notes, nil
	case TypeSyncChat:
		var chat ChatPayload
		if err := json.Unmarshal(that.Payload, &chat); err != nil {
			return nil, fmt.Errorf("%w: %w", apperror.ErrMalformedMessage, err)
		}

		return chat, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", apperror.ErrMalformedMessage, that.Type)
	}
}
