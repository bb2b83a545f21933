package feed

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startHub(t *testing.T) (*Hub, string, context.CancelFunc) {
	t.Helper()

	hub := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()

	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		<-done
		server.Close()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http"), cancel
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubBroadcastsToSpectators(t *testing.T) {
	hub, url, _ := startHub(t)

	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	view := &MatchView{MatchID: "m-1", State: "IN_PROGRESS", Players: []PlayerView{{ID: 1, Alive: true}}}
	hub.Send(Message{Type: TypeMatchStarted, MatchID: "m-1", Data: view})

	for _, conn := range []*websocket.Conn{a, b} {
		got := readMessage(t, conn)
		assert.Equal(t, TypeMatchStarted, got.Type)
		assert.Equal(t, "m-1", got.MatchID)
		require.NotNil(t, got.Data)
		assert.Equal(t, 1, got.Data.Players[0].ID)
	}
}

func TestHubReplaysLastMessageOnConnect(t *testing.T) {
	hub, url, _ := startHub(t)

	first := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Send(Message{Type: TypeMatchStarted, MatchID: "m-1"})
	hub.Send(Message{Type: TypeStatsChanged, MatchID: "m-1", EntityID: 2})
	readMessage(t, first)
	assert.Equal(t, TypeStatsChanged, readMessage(t, first).Type)

	late := dial(t, url)
	got := readMessage(t, late)
	assert.Equal(t, TypeStatsChanged, got.Type)
	assert.Equal(t, 2, got.EntityID)
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub, url, _ := startHub(t)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubShutdownClosesSpectators(t *testing.T) {
	hub, url, cancel := startHub(t)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Zero(t, hub.ClientCount())
}
