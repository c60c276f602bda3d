package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"collaborative-workspace/auth"
	"collaborative-workspace/internal/middleware"
	"collaborative-workspace/internal/presence"
	"collaborative-workspace/internal/protocol"
	"collaborative-workspace/internal/textop"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) (*httptest.Server, *Hub, *auth.JWT) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := auth.NewJWT("test-secret", time.Hour)
	h, _, _ := newTestHub(t)
	handler := NewHandler(h)
	authMw := &middleware.Auth{Tokens: tokens}

	router := gin.New()
	router.Use(middleware.ErrorHandler(zerolog.Nop()))
	router.GET("/ws", authMw.AuthMiddleWare(), handler.ServeWS)
	router.GET("/workspaces/:workspaceId/presence", authMw.AuthMiddleWare(), handler.ShowPresence)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return srv, h, tokens
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func write(t *testing.T, conn *websocket.Conn, ev protocol.Event) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, protocol.MustEncode(ev)))
}

// readUntil reads frames until one of type T arrives.
func readUntil[T protocol.Event](t *testing.T, conn *websocket.Conn) T {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		ev, err := protocol.Decode(data)
		require.NoError(t, err)
		if e, ok := ev.(T); ok {
			return e
		}
	}
}

func TestServeWS_RequiresToken(t *testing.T) {
	srv, _, _ := setupServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeWS_TwoPeersShareEdits(t *testing.T) {
	srv, h, tokens := setupServer(t)
	aliceToken, err := tokens.Generate(1, "alice@example.com", "Alice")
	require.NoError(t, err)
	bobToken, err := tokens.Generate(2, "bob@example.com", "Bob")
	require.NoError(t, err)

	alice := dial(t, srv, aliceToken)
	bob := dial(t, srv, bobToken)

	write(t, alice, protocol.DocumentJoinEvent{WorkspaceID: "ws", BlockID: "doc"})
	readUntil[protocol.DocumentStateEvent](t, alice)
	write(t, bob, protocol.DocumentJoinEvent{WorkspaceID: "ws", BlockID: "doc"})
	state := readUntil[protocol.DocumentStateEvent](t, bob)
	assert.Len(t, state.ActiveUsers, 2)

	joined := readUntil[protocol.UserJoinedEvent](t, alice)
	assert.Equal(t, "2", joined.UserID)
	assert.Equal(t, "Bob", joined.User.Name)

	write(t, alice, protocol.ContentUpdateEvent{
		WorkspaceID: "ws",
		DocumentID:  "doc",
		BlockID:     "b1",
		Operations:  []textop.Operation{textop.InsertAt(0, "Remote text")},
	})
	updated := readUntil[protocol.ContentUpdatedEvent](t, bob)
	assert.Equal(t, "Remote text", updated.Content)
	assert.Equal(t, int64(1), updated.Version)
	assert.Equal(t, "1", updated.UserID)

	write(t, bob, protocol.BlockFocusEvent{WorkspaceID: "ws", BlockID: "b1", FocusType: presence.Focus})
	focus := readUntil[protocol.BlockFocusChangedEvent](t, alice)
	assert.Equal(t, "2", focus.UserID)

	resp, err := http.Get(srv.URL + "/workspaces/ws/presence?token=" + aliceToken)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var snap presence.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "ws", snap.WorkspaceID)
	assert.Len(t, snap.Users, 2)
	require.Len(t, snap.Blocks["b1"], 1)
	assert.Equal(t, "2", snap.Blocks["b1"][0].User.ID)

	require.NoError(t, bob.Close())
	left := readUntil[protocol.UserLeftEvent](t, alice)
	assert.Equal(t, "2", left.UserID)
	assert.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}
