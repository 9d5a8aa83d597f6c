package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/rocketscienceinc/room-relay/internal/apperror"
	"github.com/rocketscienceinc/room-relay/internal/pkg"
	"github.com/rocketscienceinc/room-relay/internal/relay"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

type broker interface {
	Connect(ctx context.Context, code string) (*relay.Connection, error)
	Disconnect(conn *relay.Connection)
	HandleMessage(ctx context.Context, conn *relay.Connection, payload []byte) error
}

// Server - relay endpoint. One reader and one writer goroutine per socket; everything else goes through the broker.
type Server struct {
	logger   *slog.Logger
	broker   broker
	upgrader ws.Upgrader
}

func New(logger *slog.Logger, broker broker, allowedOrigins []string) *Server {
	return &Server{
		logger: logger.With("component", "websocket"),
		broker: broker,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

func (that *Server) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	that.upgradeToWebSocket(writer, req)
}

// upgradeToWebSocket - the connection is in its room before the handshake reply is written.
func (that *Server) upgradeToWebSocket(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	code, err := pkg.NormalizeRoomCode(req.URL.Query().Get("code"))
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}

	if !ws.IsWebSocketUpgrade(req) {
		http.Error(writer, "not a websocket upgrade", http.StatusBadRequest)
		return
	}

	conn, err := that.broker.Connect(req.Context(), code)
	if err != nil {
		log.Error("failed to register connection", "code", code, "error", err)
		http.Error(writer, "relay unavailable", http.StatusServiceUnavailable)
		return
	}

	socket, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		// the upgrader has already replied with an error status
		log.Debug("failed to upgrade connection", "code", code, "error", err)
		that.broker.Disconnect(conn)
		return
	}

	log.Info("websocket connection established", "code", code, "conn_id", conn.ID)

	writerDone := make(chan struct{})
	go that.writeMessages(socket, conn, writerDone)

	that.readMessages(req.Context(), socket, conn)

	that.broker.Disconnect(conn)
	<-writerDone

	log.Info("websocket connection closed", "code", code, "conn_id", conn.ID)
}

// readMessages - returns on the first read error. Malformed messages are dropped and the socket stays open.
func (that *Server) readMessages(ctx context.Context, socket *ws.Conn, conn *relay.Connection) {
	log := that.logger.With("method", "readMessages", "code", conn.Code, "conn_id", conn.ID)

	socket.SetReadLimit(maxMessageSize)
	_ = socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := socket.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway, ws.CloseNoStatusReceived) {
				log.Warn("unexpected close", "error", err)
			}

			return
		}

		err = that.broker.HandleMessage(ctx, conn, payload)
		switch {
		case err == nil:
		case errors.Is(err, apperror.ErrMalformedMessage):
			continue
		default:
			log.Error("failed to relay message", "error", err)
			return
		}
	}
}

// writeMessages - drains the outbound queue until the broker closes it.
func (that *Server) writeMessages(socket *ws.Conn, conn *relay.Connection, done chan<- struct{}) {
	log := that.logger.With("method", "writeMessages", "code", conn.Code, "conn_id", conn.ID)

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = socket.Close()
		close(done)
	}()

	for {
		select {
		case payload, ok := <-conn.Outbound():
			_ = socket.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = socket.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
				return
			}

			if err := socket.WriteMessage(ws.TextMessage, payload); err != nil {
				log.Debug("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = socket.SetWriteDeadline(time.Now().Add(writeWait))

			if err := socket.WriteMessage(ws.PingMessage, nil); err != nil {
				log.Debug("failed to write ping", "error", err)
				return
			}
		}
	}
}

// checkOrigin - "*" (or nothing configured) allows every origin. Requests without an Origin header are not from a browser and pass.
func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}

	return func(req *http.Request) bool {
		origin := req.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
