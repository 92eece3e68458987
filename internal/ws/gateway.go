package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"watchparty-service/internal/bus"
	"watchparty-service/internal/errs"
	"watchparty-service/internal/middleware"
	"watchparty-service/internal/models"
	"watchparty-service/internal/observability"
	"watchparty-service/internal/registry"
)

// Channel names, matching the logical routes /party/{id}/control and
// /party/{id}/chat.
const (
	ChannelControl = "control"
	ChannelChat    = "chat"
)

// Lifecycle is the slice of the party service the gateway needs.
type Lifecycle interface {
	GetParty(ctx context.Context, partyID string) (models.WatchPartyDetailsResponse, error)
	LeaveParty(ctx context.Context, partyID string, userID int64, userName string) error
}

// Relay is the playback control router boundary.
type Relay interface {
	RelayControl(ctx context.Context, partyID string, userID int64, userName string, event models.PartyEvent) error
	RelayChat(ctx context.Context, partyID string, userID int64, userName string, event models.PartyEvent) error
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// errorFrame is pushed to the originating client when a relay fails; the
// connection stays open.
type errorFrame struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// Gateway owns the websocket connections on this instance. Inbound events
// run on one read goroutine per connection; outbound delivery runs on bus
// dispatch goroutines through the session registry.
type Gateway struct {
	registry *registry.Registry
	svc      Lifecycle
	relay    Relay
	bus      bus.EventBus
	log      *zap.Logger

	// subMu serializes subscribe/unsubscribe decisions against connection
	// count changes for a party.
	subMu sync.Mutex
}

// NewGateway builds a transport gateway.
func NewGateway(reg *registry.Registry, svc Lifecycle, relay Relay, b bus.EventBus, log *zap.Logger) *Gateway {
	return &Gateway{registry: reg, svc: svc, relay: relay, bus: b, log: log}
}

// HandleControl upgrades a control-channel connection.
func (g *Gateway) HandleControl(c *gin.Context) {
	g.handle(c, ChannelControl)
}

// HandleChat upgrades a chat-channel connection.
func (g *Gateway) HandleChat(c *gin.Context) {
	g.handle(c, ChannelChat)
}

func (g *Gateway) handle(c *gin.Context, channel string) {
	partyID := c.Param("party_id")
	if partyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing party id"})
		return
	}
	userID, userName := middleware.UserFromContext(c)

	ctx, span := otel.Tracer("watchparty-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	snapshot, err := g.svc.GetParty(ctx, partyID)
	if err != nil {
		writeLookupError(c, err)
		return
	}
	if !isMember(snapshot, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a party member"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	cl := newClient(conn, channel)
	sess := registry.Session{
		PartyID:     partyID,
		UserID:      userID,
		UserName:    userName,
		ConnID:      uuid.NewString(),
		ConnectedAt: time.Now(),
	}
	g.registry.Register(cl, sess)

	g.subMu.Lock()
	err = g.bus.Subscribe(partyID, g.deliver)
	g.subMu.Unlock()
	if err != nil {
		g.log.Error("bus subscribe failed", zap.String("party_id", partyID), zap.Error(err))
		g.registry.Unregister(cl)
		cl.Close()
		return
	}

	observability.IncWSActive(channel)
	observability.IncWSEvent(channel, "ws_connect")
	g.log.Info("ws connected",
		zap.String("channel", channel),
		zap.String("party_id", partyID),
		zap.Int64("user_id", userID),
		zap.String("conn_id", sess.ConnID))

	go g.readLoop(cl)
}

func (g *Gateway) readLoop(cl *client) {
	defer g.drop(cl, "connection closed", false)

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent(cl.channel, "ws_error")
			}
			return
		}

		sess, ok := g.registry.Session(cl)
		if !ok {
			return
		}

		var event models.PartyEvent
		if err := json.Unmarshal(data, &event); err != nil {
			_ = cl.WriteJSON(errorFrame{Error: "malformed event", Retryable: false})
			continue
		}

		relayErr := g.relayInbound(cl.channel, sess, event)
		if relayErr != nil {
			_ = cl.WriteJSON(errorFrame{
				Error:     relayReason(relayErr),
				Retryable: errors.Is(relayErr, errs.ErrBusUnavailable),
			})
		}
	}
}

func (g *Gateway) relayInbound(channel string, sess registry.Session, event models.PartyEvent) error {
	ctx := context.Background()
	switch channel {
	case ChannelChat:
		return g.relay.RelayChat(ctx, sess.PartyID, sess.UserID, sess.UserName, event)
	default:
		return g.relay.RelayControl(ctx, sess.PartyID, sess.UserID, sess.UserName, event)
	}
}

// deliver is the bus handler: fan the event out to local connections for the
// party. PARTY_DELETED additionally drops every local connection and the
// subscription itself, on every instance.
func (g *Gateway) deliver(event models.PartyEvent) {
	for _, conn := range g.registry.ConnectionsFor(event.PartyID) {
		if err := conn.WriteJSON(event); err != nil {
			g.log.Warn("ws push failed",
				zap.String("party_id", event.PartyID),
				zap.Error(err))
			if cl, ok := conn.(*client); ok {
				g.drop(cl, "push failed", false)
			}
		}
	}

	if event.Type == models.EventPartyDeleted {
		for _, conn := range g.registry.ConnectionsFor(event.PartyID) {
			if cl, ok := conn.(*client); ok {
				g.drop(cl, "party deleted", true)
			}
		}
		g.subMu.Lock()
		g.bus.Unsubscribe(event.PartyID)
		g.subMu.Unlock()
	}
}

// drop tears a connection down exactly once: unregister, leave processing
// (unless the party already ended), subscription cleanup when the last local
// connection for the party goes away. Safe to call from the read goroutine,
// the bus dispatch goroutine, or both racing.
func (g *Gateway) drop(cl *client, reason string, partyEnded bool) {
	cl.once.Do(func() {
		sess, ok := g.registry.Unregister(cl)
		_ = cl.Close()
		if !ok {
			return
		}

		observability.DecWSActive(cl.channel)
		observability.IncWSEvent(cl.channel, "ws_disconnect")

		g.subMu.Lock()
		if g.registry.Count(sess.PartyID) == 0 {
			g.bus.Unsubscribe(sess.PartyID)
		}
		g.subMu.Unlock()

		if !partyEnded && g.registry.UserConnections(sess.PartyID, sess.UserID) == 0 {
			if err := g.svc.LeaveParty(context.Background(), sess.PartyID, sess.UserID, sess.UserName); err != nil {
				g.log.Error("leave on disconnect failed",
					zap.String("party_id", sess.PartyID),
					zap.Int64("user_id", sess.UserID),
					zap.Error(err))
			}
		}

		g.log.Info("ws disconnected",
			zap.String("channel", cl.channel),
			zap.String("party_id", sess.PartyID),
			zap.Int64("user_id", sess.UserID),
			zap.String("conn_id", sess.ConnID),
			zap.Duration("duration", time.Since(sess.ConnectedAt)),
			zap.String("reason", reason))
	})
}

func isMember(snapshot models.WatchPartyDetailsResponse, userID int64) bool {
	for _, m := range snapshot.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func writeLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrPartyEnded):
		c.JSON(http.StatusNotFound, gin.H{"error": "party ended"})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "party not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func relayReason(err error) string {
	switch {
	case errors.Is(err, errs.ErrBusUnavailable):
		return "event bus unavailable, retry"
	case errors.Is(err, errs.ErrInvalidEvent):
		return err.Error()
	default:
		return "internal error"
	}
}
