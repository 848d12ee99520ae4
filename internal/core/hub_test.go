package core

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"DriveBridge/internal/model"
)

// wsClient dials one websocket client against a handler that registers the
// server side of the connection into hub. Returns the client conn and the
// server-side session.
func wsClient(t *testing.T, hub *Hub) (*websocket.Conn, *Session) {
	t.Helper()
	sessCh := make(chan *Session, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sessCh <- hub.Register(conn)
	}))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	select {
	case sess := <-sessCh:
		return conn, sess
	case <-time.After(time.Second):
		t.Fatal("session was not registered")
		return nil, nil
	}
}

// readEnvelope reads one JSON message from the client side.
func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubBroadcastReachesAllSessions(t *testing.T) {
	hub := NewHub(time.Minute)
	defer hub.Close()

	connA, _ := wsClient(t, hub)
	connB, _ := wsClient(t, hub)
	require.Equal(t, 2, hub.Count())

	hub.Broadcast(model.NewResponse("hello"))

	for _, conn := range []*websocket.Conn{connA, connB} {
		msg := readEnvelope(t, conn)
		require.Equal(t, "response", msg["type"])
		require.Equal(t, "hello", msg["message"])
	}
}

func TestHubBroadcastDropsDeadSessionOnly(t *testing.T) {
	hub := NewHub(time.Minute)
	defer hub.Close()

	connA, _ := wsClient(t, hub)
	_, sessB := wsClient(t, hub)

	// simulate a dead client: its session no longer accepts messages
	sessB.Close()

	hub.Broadcast(model.NewResponse("still here"))

	msg := readEnvelope(t, connA)
	require.Equal(t, "still here", msg["message"])
	require.Equal(t, 1, hub.Count())
}

func TestHubPerSessionOrderPreserved(t *testing.T) {
	hub := NewHub(time.Minute)
	defer hub.Close()

	conn, _ := wsClient(t, hub)

	const n = 10
	for i := 0; i < n; i++ {
		hub.Broadcast(model.NewResponse(fmt.Sprintf("msg-%d", i)))
	}
	for i := 0; i < n; i++ {
		msg := readEnvelope(t, conn)
		require.Equal(t, fmt.Sprintf("msg-%d", i), msg["message"])
	}
}

func TestHubUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(time.Minute)
	defer hub.Close()

	_, sess := wsClient(t, hub)
	hub.Unregister(sess.ID)
	hub.Unregister(sess.ID)
	require.Zero(t, hub.Count())
}

func TestSessionSendAfterCloseIsRejected(t *testing.T) {
	hub := NewHub(time.Minute)
	defer hub.Close()

	_, sess := wsClient(t, hub)
	sess.Close()
	require.False(t, sess.Send([]byte("late")))
	require.False(t, sess.SendJSON(model.NewResponse("late")))
}
