package room

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tablestack/holdem/internal/protocol"
	"github.com/tablestack/holdem/internal/store"
)

// newTestServer wires a Registry behind a raw /ws endpoint so tests dial a
// real socket rather than mocking the websocket.Conn type.
func newTestServer(t *testing.T) (*httptest.Server, *Registry, *store.Store) {
	t.Helper()
	st, err := store.Open("file::memory:?cache=shared", time.Hour, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	registry := NewRegistry(st, zerolog.Nop(), quartz.NewMock(t))

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		username := r.URL.Query().Get("username")
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = registry.Room("room1").Connect(r.Context(), ws, userID, username)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, registry, st
}

// dial opens a live socket for userID/username. It pre-seeds a member
// record first — in production that row is created by the Command
// Surface's JoinRoom before a client ever opens /ws; Connect only
// activates an existing membership, it never creates one.
func dial(t *testing.T, srv *httptest.Server, st *store.Store, userID, username string, seat int) *websocket.Conn {
	t.Helper()
	require.NoError(t, st.PutMember(context.Background(), "room1", store.RoomMemberInfo{
		UserID: userID, Username: username, SeatNumber: seat, CurrentStack: 1000,
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?roomId=room1&userId=" + userID + "&username=" + username
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readTyped(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg map[string]any
		require.NoError(t, json.Unmarshal(raw, &msg))
		if msg["type"] == wantType {
			return msg
		}
	}
}

func TestConnectSendsInitialSnapshot(t *testing.T) {
	srv, _, st := newTestServer(t)
	conn := dial(t, srv, st, "u1", "alice", 1)
	defer conn.Close()

	msg := readTyped(t, conn, protocol.TypeRoomState)
	members, ok := msg["members"].([]any)
	require.True(t, ok)
	require.Len(t, members, 1)
}

func TestChatBroadcastsToAllViewers(t *testing.T) {
	srv, _, st := newTestServer(t)
	a := dial(t, srv, st, "u1", "alice", 1)
	defer a.Close()
	readTyped(t, a, protocol.TypeRoomState)

	b := dial(t, srv, st, "u2", "bob", 2)
	defer b.Close()
	readTyped(t, b, protocol.TypeRoomState)

	chat := protocol.ClientChat{Type: protocol.TypeChat, Message: "gg"}
	payload, err := json.Marshal(chat)
	require.NoError(t, err)
	require.NoError(t, a.WriteMessage(websocket.TextMessage, payload))

	msg := readTyped(t, b, protocol.TypeChatOut)
	require.Equal(t, "gg", msg["message"])
	require.Equal(t, "u1", msg["userId"])
}

func TestChatRateLimitRejectsRapidMessages(t *testing.T) {
	srv, registry, st := newTestServer(t)
	conn := dial(t, srv, st, "u1", "alice", 1)
	defer conn.Close()
	readTyped(t, conn, protocol.TypeRoomState)

	require.NoError(t, registry.Room("room1").HandleChat(context.Background(), "u1", "alice", "first"))
	err := registry.Room("room1").HandleChat(context.Background(), "u1", "alice", "second")
	require.Error(t, err)
}

func TestChatRejectsOverLongMessage(t *testing.T) {
	_, registry, _ := newTestServer(t)
	long := strings.Repeat("x", protocol.MaxChatMessageLength+1)
	err := registry.Room("room1").HandleChat(context.Background(), "u1", "alice", long)
	require.Error(t, err)
}

func TestSupersedingConnectionDoesNotDropTheNewOne(t *testing.T) {
	srv, registry, st := newTestServer(t)
	first := dial(t, srv, st, "u1", "alice", 1)
	second := dial(t, srv, st, "u1", "alice", 1)
	defer second.Close()
	readTyped(t, first, protocol.TypeRoomState)
	readTyped(t, second, protocol.TypeRoomState)

	// The first connection's read pump should observe the close and tear
	// itself down without touching the second connection's map entry.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, _ = first.ReadMessage()
	time.Sleep(100 * time.Millisecond)

	members, err := st.GetMembers(context.Background(), "room1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.True(t, members["u1"].IsActive, "the surviving connection must still be marked active")

	_ = registry
}
