package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"support-chat-service/internal/gateway"
	"support-chat-service/internal/mocks"
	"support-chat-service/internal/models"
	"support-chat-service/internal/repositories"
	"support-chat-service/internal/roomid"
)

var (
	adminAcct = models.Account{ID: "admin-1", Name: "A", Role: "admin", Status: "approved"}
	userAcct  = models.Account{ID: "user-2", Name: "B", Role: "user", Status: "approved"}
)

func newSessionServer(t *testing.T) (*httptest.Server, *mocks.DirectoryMock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repositories.NewMemoryStore()
	hub := NewHub()
	gw := gateway.New(store, store, hub, 0)
	dir := new(mocks.DirectoryMock)
	handler := NewSessionHandler(hub, gw, dir)

	router := gin.New()
	router.GET("/ws", handler.Handle)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, dir
}

func dialSession(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

func readEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func decodeData(t *testing.T, env Envelope, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func allowAccount(dir *mocks.DirectoryMock, token string, account models.Account) {
	dir.On("Authenticate", mock.Anything, token).Return(account, nil)
	dir.On("IsParticipantAuthorized", mock.Anything, account.ID).Return(true, nil)
}

func TestSessionJoinReplaysHistoryAndDeliversLive(t *testing.T) {
	srv, dir := newSessionServer(t)
	allowAccount(dir, "tok-a", adminAcct)
	allowAccount(dir, "tok-b", userAcct)

	room, err := roomid.Derive(adminAcct.ID, userAcct.ID)
	require.NoError(t, err)

	adminConn := dialSession(t, srv, "tok-a")
	writeEvent(t, adminConn, models.EventJoin, map[string]any{"roomId": room})

	env := readEvent(t, adminConn)
	require.Equal(t, models.EventHistory, env.Event)
	var history models.HistoryEvent
	decodeData(t, env, &history)
	assert.Equal(t, room, history.RoomID)
	assert.Empty(t, history.History)

	userConn := dialSession(t, srv, "tok-b")
	writeEvent(t, userConn, models.EventJoin, map[string]any{"roomId": room})
	require.Equal(t, models.EventHistory, readEvent(t, userConn).Event)

	writeEvent(t, adminConn, models.EventMessage, map[string]any{
		"roomId": room,
		"msg":    map[string]any{"id": "m1", "from": adminAcct.ID, "name": "A", "text": "hi", "ts": 1},
	})

	// Broadcast reaches both the peer and the sender's own connection.
	for _, conn := range []*websocket.Conn{adminConn, userConn} {
		env := readEvent(t, conn)
		require.Equal(t, models.EventMessage, env.Event)
		var msgEvent models.MessageEvent
		decodeData(t, env, &msgEvent)
		assert.Equal(t, "m1", msgEvent.Msg.ID)
		assert.Equal(t, "hi", msgEvent.Msg.Text)
	}

	// A reconnect replays the stored conversation.
	reconnect := dialSession(t, srv, "tok-a")
	writeEvent(t, reconnect, models.EventJoin, map[string]any{"roomId": room})
	env = readEvent(t, reconnect)
	require.Equal(t, models.EventHistory, env.Event)
	decodeData(t, env, &history)
	require.Len(t, history.History, 1)
	assert.Equal(t, "m1", history.History[0].ID)
}

func TestSessionTypingSkipsSender(t *testing.T) {
	srv, dir := newSessionServer(t)
	allowAccount(dir, "tok-a", adminAcct)
	allowAccount(dir, "tok-b", userAcct)

	room, err := roomid.Derive(adminAcct.ID, userAcct.ID)
	require.NoError(t, err)

	adminConn := dialSession(t, srv, "tok-a")
	writeEvent(t, adminConn, models.EventJoin, map[string]any{"roomId": room})
	readEvent(t, adminConn)
	userConn := dialSession(t, srv, "tok-b")
	writeEvent(t, userConn, models.EventJoin, map[string]any{"roomId": room})
	readEvent(t, userConn)

	writeEvent(t, userConn, models.EventTyping, map[string]any{"roomId": room, "accountId": userAcct.ID, "value": true})

	env := readEvent(t, adminConn)
	require.Equal(t, models.EventTyping, env.Event)
	var typing models.TypingEvent
	decodeData(t, env, &typing)
	assert.Equal(t, userAcct.ID, typing.AccountID)
	assert.True(t, typing.Value)

	// The typing signal must not echo back: the sender's next event is the
	// admin's message, not its own typing event.
	writeEvent(t, adminConn, models.EventMessage, map[string]any{
		"roomId": room,
		"msg":    map[string]any{"id": "m1", "from": adminAcct.ID, "text": "hi", "ts": 1},
	})
	env = readEvent(t, userConn)
	assert.Equal(t, models.EventMessage, env.Event)
}

func TestSessionDeleteForEveryoneBroadcasts(t *testing.T) {
	srv, dir := newSessionServer(t)
	allowAccount(dir, "tok-a", adminAcct)
	allowAccount(dir, "tok-b", userAcct)

	room, err := roomid.Derive(adminAcct.ID, userAcct.ID)
	require.NoError(t, err)

	adminConn := dialSession(t, srv, "tok-a")
	writeEvent(t, adminConn, models.EventJoin, map[string]any{"roomId": room})
	readEvent(t, adminConn)
	userConn := dialSession(t, srv, "tok-b")
	writeEvent(t, userConn, models.EventJoin, map[string]any{"roomId": room})
	readEvent(t, userConn)

	writeEvent(t, adminConn, models.EventMessage, map[string]any{
		"roomId": room,
		"msg":    map[string]any{"id": "m1", "from": adminAcct.ID, "text": "hi", "ts": 1},
	})
	readEvent(t, adminConn)
	readEvent(t, userConn)

	writeEvent(t, adminConn, models.EventMessageDelete, map[string]any{
		"roomId": room, "messageId": "m1", "requesterId": adminAcct.ID, "forEveryone": true,
	})

	for _, conn := range []*websocket.Conn{adminConn, userConn} {
		env := readEvent(t, conn)
		require.Equal(t, models.EventMessageDeleted, env.Event)
		var deletion models.DeletionEvent
		decodeData(t, env, &deletion)
		assert.Equal(t, "m1", deletion.MessageID)
		assert.ElementsMatch(t, []string{adminAcct.ID, userAcct.ID}, deletion.DeleteFor)
	}
}

func TestSessionClearBroadcastsRoomCleared(t *testing.T) {
	srv, dir := newSessionServer(t)
	allowAccount(dir, "tok-a", adminAcct)

	room, err := roomid.Derive(adminAcct.ID, userAcct.ID)
	require.NoError(t, err)

	adminConn := dialSession(t, srv, "tok-a")
	writeEvent(t, adminConn, models.EventJoin, map[string]any{"roomId": room})
	readEvent(t, adminConn)

	writeEvent(t, adminConn, models.EventClear, map[string]any{"roomId": room})

	env := readEvent(t, adminConn)
	require.Equal(t, models.EventRoomCleared, env.Event)
	var cleared models.ClearedEvent
	decodeData(t, env, &cleared)
	assert.Equal(t, room, cleared.RoomID)
}

func TestSessionJoinOutsiderGetsErrorOnly(t *testing.T) {
	srv, dir := newSessionServer(t)
	intruder := models.Account{ID: "user-3", Name: "C", Role: "user", Status: "approved"}
	allowAccount(dir, "tok-c", intruder)

	room, err := roomid.Derive(adminAcct.ID, userAcct.ID)
	require.NoError(t, err)

	conn := dialSession(t, srv, "tok-c")
	writeEvent(t, conn, models.EventJoin, map[string]any{"roomId": room})

	env := readEvent(t, conn)
	require.Equal(t, models.EventError, env.Event)
	var errEvent models.ErrorEvent
	decodeData(t, env, &errEvent)
	assert.Equal(t, "not_authorized", errEvent.Code)
}

func TestSessionRejectsUnapprovedAccount(t *testing.T) {
	srv, dir := newSessionServer(t)
	pending := models.Account{ID: "user-9", Name: "P", Role: "user", Status: "pending"}
	dir.On("Authenticate", mock.Anything, "tok-p").Return(pending, nil)
	dir.On("IsParticipantAuthorized", mock.Anything, pending.ID).Return(false, nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=tok-p"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestSessionResolvesUploadToken(t *testing.T) {
	srv, dir := newSessionServer(t)
	allowAccount(dir, "tok-a", adminAcct)
	file := models.FileRef{FileName: "notes.txt", FileSize: 42, FileURL: "https://files.example/notes.txt"}
	dir.On("ResolveFileReference", mock.Anything, "upl-1").Return(file, nil)

	room, err := roomid.Derive(adminAcct.ID, userAcct.ID)
	require.NoError(t, err)

	conn := dialSession(t, srv, "tok-a")
	writeEvent(t, conn, models.EventJoin, map[string]any{"roomId": room})
	readEvent(t, conn)

	writeEvent(t, conn, models.EventMessage, map[string]any{
		"roomId": room,
		"msg":    map[string]any{"id": "m1", "from": adminAcct.ID, "ts": 1, "uploadToken": "upl-1"},
	})

	env := readEvent(t, conn)
	require.Equal(t, models.EventMessage, env.Event)
	var msgEvent models.MessageEvent
	decodeData(t, env, &msgEvent)
	require.NotNil(t, msgEvent.Msg.File)
	assert.Equal(t, "notes.txt", msgEvent.Msg.File.FileName)
	assert.EqualValues(t, 42, msgEvent.Msg.File.FileSize)
}
