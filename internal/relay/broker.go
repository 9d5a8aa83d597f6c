package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/room-relay/internal/apperror"
	"github.com/rocketscienceinc/room-relay/internal/entity"
)

const inboxSize = 256

var ErrBrokerStopped = errors.New("relay broker stopped")

// Persister - durable write for full-state messages.
type Persister interface {
	PersistState(ctx context.Context, code string, state json.RawMessage) error
}

type event interface{ isEvent() }

type registerEvent struct {
	conn  *Connection
	reply chan struct{}
}

type unregisterEvent struct {
	conn *Connection
}

type messageEvent struct {
	conn    *Connection
	payload []byte
}

type statsEvent struct {
	reply chan Stats
}

func (registerEvent) isEvent()   {}
func (unregisterEvent) isEvent() {}
func (messageEvent) isEvent()    {}
func (statsEvent) isEvent()      {}

type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// Broker owns the Registry. Every lifecycle event and inbound message goes
// through one loop goroutine, so a broadcast never sees the room change under it.
type Broker struct {
	logger     *slog.Logger
	registry   *Registry
	persister  Persister
	sendBuffer int

	inbox chan event
	done  chan struct{}
}

// NewBroker - persister may be nil, then full-state messages are only relayed.
func NewBroker(logger *slog.Logger, registry *Registry, persister Persister, sendBuffer int) *Broker {
	if sendBuffer <= 0 {
		sendBuffer = 1
	}

	return &Broker{
		logger:     logger.With("component", "relay-broker"),
		registry:   registry,
		persister:  persister,
		sendBuffer: sendBuffer,

		inbox: make(chan event, inboxSize),
		done:  make(chan struct{}),
	}
}

// Run - dispatch loop. Returns when ctx is done, after closing every live connection.
func (that *Broker) Run(ctx context.Context) {
	log := that.logger.With("method", "Run")
	defer close(that.done)

	for {
		select {
		case <-ctx.Done():
			that.registry.drain(func(conn *Connection) {
				conn.markClosed()
				close(conn.send)
			})
			log.Info("relay broker stopped")

			return

		case ev := <-that.inbox:
			that.dispatch(ev)
		}
	}
}

func (that *Broker) dispatch(ev event) {
	switch msg := ev.(type) {
	case registerEvent:
		that.registry.Register(msg.conn.Code, msg.conn)
		msg.conn.activate()
		close(msg.reply)

		that.logger.Debug("connection registered",
			"code", msg.conn.Code, "conn_id", msg.conn.ID, "members", that.registry.Members(msg.conn.Code))

	case unregisterEvent:
		if !that.registry.Unregister(msg.conn.Code, msg.conn) {
			return
		}

		close(msg.conn.send)

		that.logger.Debug("connection unregistered",
			"code", msg.conn.Code, "conn_id", msg.conn.ID, "room_closed", !that.registry.Has(msg.conn.Code))

	case messageEvent:
		result := that.registry.Broadcast(msg.conn.Code, msg.conn, msg.payload)
		if result.Dropped > 0 {
			that.logger.Warn("outbound queue full, message dropped",
				"code", msg.conn.Code, "dropped", result.Dropped)
		}

	case statsEvent:
		msg.reply <- Stats{
			Rooms:       that.registry.Rooms(),
			Connections: that.registry.Connections(),
		}
	}
}

// Connect - registers a new connection under code and returns once it is ACTIVE.
func (that *Broker) Connect(ctx context.Context, code string) (*Connection, error) {
	if code == "" {
		return nil, apperror.ErrMissingRoomCode
	}

	conn := newConnection(code, that.sendBuffer)
	reply := make(chan struct{})

	if err := that.submit(ctx, registerEvent{conn: conn, reply: reply}); err != nil {
		return nil, err
	}

	select {
	case <-reply:
		return conn, nil
	case <-that.done:
		return nil, ErrBrokerStopped
	}
}

// Disconnect - marks conn closed at once and removes it from its room. Safe to call more than once.
func (that *Broker) Disconnect(conn *Connection) {
	if !conn.markClosed() {
		return
	}

	select {
	case that.inbox <- unregisterEvent{conn: conn}:
	case <-that.done:
	}
}

// HandleMessage - validates one inbound message and relays it to the sender's room.
// Runs on the sender's reader goroutine, so per-sender order is kept.
func (that *Broker) HandleMessage(ctx context.Context, conn *Connection, payload []byte) error {
	log := that.logger.With("method", "HandleMessage", "code", conn.Code, "conn_id", conn.ID)

	envelope, err := entity.ParseEnvelope(payload)
	if err != nil {
		log.Debug("malformed message dropped", "error", err)
		return err
	}

	if envelope.Type == entity.TypeSyncState && that.persister != nil {
		if err = that.persister.PersistState(ctx, conn.Code, envelope.Payload); err != nil {
			log.Warn("failed to persist room state, relaying anyway", "error", err)
		}
	}

	return that.submit(ctx, messageEvent{conn: conn, payload: payload})
}

func (that *Broker) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)

	if err := that.submit(ctx, statsEvent{reply: reply}); err != nil {
		return Stats{}, err
	}

	select {
	case stats := <-reply:
		return stats, nil
	case <-that.done:
		return Stats{}, ErrBrokerStopped
	case <-ctx.Done():
		return Stats{}, fmt.Errorf("failed to get relay stats: %w", ctx.Err())
	}
}

func (that *Broker) submit(ctx context.Context, ev event) error {
	select {
	case that.inbox <- ev:
		return nil
	case <-that.done:
		return ErrBrokerStopped
	case <-ctx.Done():
		return fmt.Errorf("failed to submit relay event: %w", ctx.Err())
	}
}
