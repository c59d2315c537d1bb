package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesRoomMembersOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, r.URL.Query().Get("room"))
		hub.Register <- client
		go client.WritePump()
		go client.ReadPump()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	teamConn, _, err := websocket.DefaultDialer.Dial(wsURL+"?room="+TeamRoom(3), nil)
	require.NoError(t, err)
	defer teamConn.Close()
	otherConn, _, err := websocket.DefaultDialer.Dial(wsURL+"?room="+TeamRoom(4), nil)
	require.NoError(t, err)
	defer otherConn.Close()

	require.Eventually(t, func() bool {
		return hub.RoomSize(TeamRoom(3)) == 1 && hub.RoomSize(TeamRoom(4)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	hub.Publish(NewEvent(CaptainAssigned, map[string]int{"player_id": 9}, at, TeamRoom(3), PlayerRoom(9)))

	require.NoError(t, teamConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := teamConn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		ID      string         `json:"id"`
		Type    string         `json:"type"`
		Payload map[string]int `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, CaptainAssigned, got.Type)
	assert.Equal(t, 9, got.Payload["player_id"])
	assert.NotEmpty(t, got.ID)

	require.NoError(t, otherConn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = otherConn.ReadMessage()
	assert.Error(t, err)
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	a := NewEvent(DreamTeamPublished, nil, time.Time{}, AdminRoom)
	b := NewEvent(DreamTeamPublished, nil, time.Time{}, AdminRoom)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, []string{AdminRoom}, a.Rooms)
	assert.Equal(t, "player_7", PlayerRoom(7))
}

func TestHub_AttachAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	assert.False(t, hub.Attach(&Client{Hub: hub, Room: AdminRoom}))
}
