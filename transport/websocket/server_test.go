package websocket

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/room-relay/internal/relay"
)

const readTimeout = time.Second

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	broker := relay.NewBroker(logger, relay.NewRegistry(), nil, 16)
	go broker.Run(ctx)

	srv := httptest.NewServer(New(logger, broker, []string{"*"}))

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return srv
}

func dial(t *testing.T, srv *httptest.Server, code string) *ws.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?code=" + code

	socket, resp, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	t.Cleanup(func() {
		_ = socket.Close()
	})

	return socket
}

func readMessage(t *testing.T, socket *ws.Conn) string {
	t.Helper()

	require.NoError(t, socket.SetReadDeadline(time.Now().Add(readTimeout)))

	_, payload, err := socket.ReadMessage()
	require.NoError(t, err)

	return string(payload)
}

func assertSilent(t *testing.T, socket *ws.Conn) {
	t.Helper()

	require.NoError(t, socket.SetReadDeadline(time.Now().Add(100*time.Millisecond)))

	_, payload, err := socket.ReadMessage()
	require.Error(t, err, "unexpected message: %s", payload)

	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestServer_Relay(t *testing.T) {
	srv := newTestServer(t)

	// Given: A and B in room AB12CD, C in room EF34GH
	a := dial(t, srv, "AB12CD")
	b := dial(t, srv, "AB12CD")
	c := dial(t, srv, "EF34GH")

	// When: A sends a notes sync
	msg := `{"type":"SYNC_NOTES","payload":"suspect lied"}`
	require.NoError(t, a.WriteMessage(ws.TextMessage, []byte(msg)))

	// Then: B receives it verbatim, A and C do not
	assert.Equal(t, msg, readMessage(t, b))
	assertSilent(t, a)
	assertSilent(t, c)
}

func TestServer_CodeIsCaseInsensitive(t *testing.T) {
	srv := newTestServer(t)

	a := dial(t, srv, "ab12cd")
	b := dial(t, srv, "AB12CD")

	msg := `{"type":"SYNC_CHAT","payload":{"subject":"butler","message":{"text":"hi"}}}`
	require.NoError(t, b.WriteMessage(ws.TextMessage, []byte(msg)))

	assert.Equal(t, msg, readMessage(t, a))
}

func TestServer_MalformedMessageKeepsConnection(t *testing.T) {
	srv := newTestServer(t)

	a := dial(t, srv, "AB12CD")
	b := dial(t, srv, "AB12CD")

	// When: A sends invalid JSON, invalid UTF-8 and then a valid message
	require.NoError(t, a.WriteMessage(ws.TextMessage, []byte(`{"type":"SYNC_NOTES",`)))
	require.NoError(t, a.WriteMessage(ws.TextMessage, []byte("{\"type\":\"SYNC_NOTES\",\"payload\":\"\xff\xfe\"}")))

	valid := `{"type":"SYNC_NOTES","payload":"still here"}`
	require.NoError(t, a.WriteMessage(ws.TextMessage, []byte(valid)))

	// Then: B only sees the valid one
	assert.Equal(t, valid, readMessage(t, b))
}

func TestServer_PeerLeaves(t *testing.T) {
	srv := newTestServer(t)

	a := dial(t, srv, "AB12CD")
	b := dial(t, srv, "AB12CD")

	// When: B closes its socket
	require.NoError(t, b.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, "")))
	_ = b.Close()

	// Then: A can keep sending without errors and a newcomer still gets messages
	c := dial(t, srv, "AB12CD")

	msg := `{"type":"SYNC_VERDICT","payload":{"guilty":"butler"}}`
	require.NoError(t, a.WriteMessage(ws.TextMessage, []byte(msg)))

	assert.Equal(t, msg, readMessage(t, c))
}

func TestServer_RejectsBadHandshake(t *testing.T) {
	srv := newTestServer(t)

	testCases := []struct {
		name  string
		query string
	}{
		{name: "Missing code", query: ""},
		{name: "Empty code", query: "?code="},
		{name: "Invalid code", query: "?code=AB-12"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + tc.query

			// When: dialing without a usable room code
			_, resp, err := ws.DefaultDialer.Dial(url, nil)

			// Then: the upgrade is refused
			require.ErrorIs(t, err, ws.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	t.Run("Plain http request", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/ws?code=AB12CD")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestCheckOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, checkOrigin([]string{"*"})(req))
	assert.True(t, checkOrigin([]string{"http://localhost:3000"})(req))
	assert.False(t, checkOrigin([]string{"https://example.com"})(req))

	req.Header.Del("Origin")
	assert.True(t, checkOrigin([]string{"https://example.com"})(req))
}
