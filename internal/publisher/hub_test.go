package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiko9987/itglobal/internal/aggregate"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub("")
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, hub *Hub, url string, want int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.Clients() == want }, time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHubBroadcastsToAllClients(t *testing.T) {
	hub, url := startHub(t)
	a := dial(t, hub, url, 1)
	b := dial(t, hub, url, 2)

	snap := &aggregate.Snapshot{GeneratedAt: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)}
	hub.PublishSnapshot(snap)

	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		assert.Equal(t, EventSnapshot, ev.Type)
		require.NotNil(t, ev.Snapshot)
		assert.True(t, snap.GeneratedAt.Equal(ev.Snapshot.GeneratedAt))
	}

	hub.PublishChange("A-001", "created")
	ev := readEvent(t, a)
	assert.Equal(t, EventDataChanged, ev.Type)
	assert.Equal(t, "A-001", ev.Code)
	assert.Equal(t, "created", ev.Action)
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url, 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubKeepsLatestSnapshotWhenQueueIsFull(t *testing.T) {
	hub := NewHub("")
	for i := 0; i < 12; i++ {
		hub.PublishChange("A-001", "updated")
	}
	older := &aggregate.Snapshot{GeneratedAt: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)}
	newer := &aggregate.Snapshot{GeneratedAt: time.Date(2024, 3, 5, 9, 5, 0, 0, time.UTC)}
	hub.PublishSnapshot(older)
	hub.PublishSnapshot(newer)

	require.Len(t, hub.snapshots, 1)
	var ev Event
	require.NoError(t, json.Unmarshal(<-hub.snapshots, &ev))
	assert.Equal(t, EventSnapshot, ev.Type)
	require.NotNil(t, ev.Snapshot)
	assert.True(t, newer.GeneratedAt.Equal(ev.Snapshot.GeneratedAt))
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	hub := NewHub("https://dash.example.com")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
