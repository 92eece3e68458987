package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"watchparty-service/internal/bus"
	"watchparty-service/internal/middleware"
	"watchparty-service/internal/models"
	"watchparty-service/internal/party"
	"watchparty-service/internal/registry"
	"watchparty-service/internal/store"
)

type gatewayFixture struct {
	server   *httptest.Server
	fabric   *bus.Local
	svc      *party.Service
	registry *registry.Registry
}

func setupGateway(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fabric := bus.NewLocal()
	node := fabric.Node()
	st := store.NewMemoryStore(time.Hour, time.Minute)
	svc := party.NewService(st, node, nil, zap.NewNop())
	relay := party.NewRouter(node, nil, zap.NewNop())
	reg := registry.New()
	gateway := NewGateway(reg, svc, relay, node, zap.NewNop())

	router := gin.New()
	identity := middleware.Identity()
	router.GET("/ws/party/:party_id/control", identity, gateway.HandleControl)
	router.GET("/ws/party/:party_id/chat", identity, gateway.HandleChat)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	_, err := svc.CreateParty(context.Background(), "p1", 100, "https://cdn.example.com/100.m3u8", 42, "alice")
	require.NoError(t, err)
	_, err = svc.JoinParty(context.Background(), "p1", 7, "bob")
	require.NoError(t, err)

	return &gatewayFixture{server: server, fabric: fabric, svc: svc, registry: reg}
}

func (f *gatewayFixture) dial(t *testing.T, channel string, userID, userName string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") +
		"/ws/party/p1/" + channel + "?user_id=" + userID + "&user_name=" + userName
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// The upgrade response is written before the handler registers the
// connection, so a dial returning is not enough to start sending.
func (f *gatewayFixture) waitConnections(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.registry.Count("p1") == n
	}, 2*time.Second, 5*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) models.PartyEvent {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event models.PartyEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestControlEventReachesOtherMember(t *testing.T) {
	f := setupGateway(t)

	alice := f.dial(t, "control", "42", "alice")
	bob := f.dial(t, "control", "7", "bob")
	f.waitConnections(t, 2)

	payload, _ := json.Marshal(models.SeekPayload{Position: 30})
	require.NoError(t, alice.WriteJSON(models.PartyEvent{
		PartyID: "spoofed",
		Type:    models.EventSeek,
		Payload: payload,
	}))

	event := readEvent(t, bob)
	require.Equal(t, models.EventSeek, event.Type)
	require.Equal(t, "p1", event.PartyID, "route party id must win over client value")
	require.Equal(t, int64(42), event.UserID)
	require.JSONEq(t, string(payload), string(event.Payload))
}

func TestChatChannelForcesChatType(t *testing.T) {
	f := setupGateway(t)

	alice := f.dial(t, "chat", "42", "alice")
	bob := f.dial(t, "chat", "7", "bob")
	f.waitConnections(t, 2)

	payload, _ := json.Marshal(models.ChatPayload{Text: "hello"})
	require.NoError(t, alice.WriteJSON(models.PartyEvent{
		Type:      models.EventPlay,
		Payload:   payload,
		Timestamp: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	event := readEvent(t, bob)
	require.Equal(t, models.EventChat, event.Type)
	require.True(t, event.Timestamp.After(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)),
		"chat timestamp must be server-assigned")
}

func TestNonMemberHandshakeRejected(t *testing.T) {
	f := setupGateway(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") +
		"/ws/party/p1/control?user_id=99&user_name=mallory"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, 403, resp.StatusCode)
}

func TestUnknownPartyHandshakeRejected(t *testing.T) {
	f := setupGateway(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") +
		"/ws/party/ghost/control?user_id=42&user_name=alice"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, 404, resp.StatusCode)
}

func TestMissingIdentityRejected(t *testing.T) {
	f := setupGateway(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/party/p1/control"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, 401, resp.StatusCode)
}

func TestInvalidEventKeepsConnectionOpen(t *testing.T) {
	f := setupGateway(t)

	alice := f.dial(t, "control", "42", "alice")
	bob := f.dial(t, "control", "7", "bob")
	f.waitConnections(t, 2)

	// SEEK without a payload is rejected with an error frame.
	require.NoError(t, alice.WriteJSON(models.PartyEvent{Type: models.EventSeek}))

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Error     string `json:"error"`
		Retryable bool   `json:"retryable"`
	}
	require.NoError(t, alice.ReadJSON(&frame))
	require.NotEmpty(t, frame.Error)
	require.False(t, frame.Retryable)

	// The connection still relays valid events afterwards.
	require.NoError(t, alice.WriteJSON(models.PartyEvent{Type: models.EventPlay}))
	event := readEvent(t, bob)
	require.Equal(t, models.EventPlay, event.Type)
}

func TestDisconnectTriggersUserLeft(t *testing.T) {
	f := setupGateway(t)

	sink := make(chan models.PartyEvent, 16)
	observer := f.fabric.Node()
	require.NoError(t, observer.Subscribe("p1", func(e models.PartyEvent) { sink <- e }))

	bob := f.dial(t, "control", "7", "bob")
	f.waitConnections(t, 1)
	require.NoError(t, bob.Close())

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink:
			if event.Type == models.EventUserLeft && event.UserID == 7 {
				return
			}
		case <-deadline:
			t.Fatal("no USER_LEFT after disconnect")
		}
	}
}

func TestPartyDeletedClosesConnections(t *testing.T) {
	f := setupGateway(t)

	bob := f.dial(t, "control", "7", "bob")
	f.waitConnections(t, 1)

	// Host leaves; the party ends and every local connection is dropped.
	require.NoError(t, f.svc.LeaveParty(context.Background(), "p1", 42, "alice"))

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(2*time.Second)))
	sawDeleted := false
	for {
		var event models.PartyEvent
		if err := bob.ReadJSON(&event); err != nil {
			break
		}
		if event.Type == models.EventPartyDeleted {
			sawDeleted = true
		}
	}
	require.True(t, sawDeleted, "expected PARTY_DELETED before the close")
}
