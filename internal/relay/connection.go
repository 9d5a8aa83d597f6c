package relay

import (
	"sync/atomic"

	"github.com/google/uuid"
)

type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

func (that State) String() string {
	switch that {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is one live client channel, tagged with a single room code for its whole life.
// The outbound queue is written only by the broker loop, which also closes it on unregister.
type Connection struct {
	ID   uuid.UUID
	Code string

	send  chan []byte
	state atomic.Int32
}

func newConnection(code string, sendBuffer int) *Connection {
	return &Connection{
		ID:   uuid.New(),
		Code: code,
		send: make(chan []byte, sendBuffer),
	}
}

// Outbound - payloads to write to the client. Closed once the connection leaves the registry.
func (that *Connection) Outbound() <-chan []byte {
	return that.send
}

func (that *Connection) State() State {
	return State(that.state.Load())
}

func (that *Connection) IsOpen() bool {
	return that.State() == StateActive
}

func (that *Connection) activate() {
	that.state.CompareAndSwap(int32(StateConnecting), int32(StateActive))
}

// markClosed - immediate and unconditional; the connection is skipped by every later broadcast.
func (that *Connection) markClosed() bool {
	return State(that.state.Swap(int32(StateClosed))) != StateClosed
}

// enqueue never blocks: a full queue drops the payload for this recipient only.
func (that *Connection) enqueue(payload []byte) bool {
	select {
	case that.send <- payload:
		return true
	default:
		return false
	}
}
