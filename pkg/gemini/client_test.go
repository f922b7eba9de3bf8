package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// startLiveServer runs a minimal live endpoint that acknowledges the
// setup frame and then hands the socket to the handler.
func startLiveServer(t *testing.T, handler func(ws *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`)); err != nil {
			return
		}

		handler(ws)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testConnect(t *testing.T, endpoint string) *Conn {
	t.Helper()
	conn, err := Connect(context.Background(), ConnectConfig{
		APIKey:   "test-key",
		Endpoint: endpoint,
		Setup:    Setup{Model: "models/test"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendClose(ws *websocket.Conn, code int, reason string) {
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second))
	// Wait for the client's close response so the frame is not lost to a
	// racing TCP teardown.
	ws.SetReadDeadline(time.Now().Add(time.Second))
	ws.ReadMessage()
}

func TestConnServerNormalClose(t *testing.T) {
	endpoint := startLiveServer(t, func(ws *websocket.Conn) {
		sendClose(ws, websocket.CloseNormalClosure, "conversation over")
	})

	conn := testConnect(t, endpoint)

	for range conn.Events() {
	}
	<-conn.Done()
	assert.NoError(t, conn.Err())
}

func TestConnServerGoingAway(t *testing.T) {
	endpoint := startLiveServer(t, func(ws *websocket.Conn) {
		sendClose(ws, websocket.CloseGoingAway, "")
	})

	conn := testConnect(t, endpoint)

	for range conn.Events() {
	}
	<-conn.Done()
	assert.NoError(t, conn.Err())
}

func TestConnServerAbnormalClose(t *testing.T) {
	endpoint := startLiveServer(t, func(ws *websocket.Conn) {
		sendClose(ws, websocket.CloseInternalServerErr, "boom")
	})

	conn := testConnect(t, endpoint)

	for range conn.Events() {
	}
	<-conn.Done()
	assert.Error(t, conn.Err())
}

func TestConnDeliversEventsBeforeClose(t *testing.T) {
	endpoint := startLiveServer(t, func(ws *websocket.Conn) {
		frame := `{"serverContent":{"inputTranscription":{"text":"hola"},"turnComplete":true}}`
		if err := ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
		sendClose(ws, websocket.CloseNormalClosure, "")
	})

	conn := testConnect(t, endpoint)

	var kinds []ServerEventKind
	for ev := range conn.Events() {
		kinds = append(kinds, ev.Kind)
	}
	<-conn.Done()

	assert.Equal(t, []ServerEventKind{EventInputTranscription, EventTurnComplete}, kinds)
	assert.NoError(t, conn.Err())
}
