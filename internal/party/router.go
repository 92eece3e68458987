package party

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"watchparty-service/internal/audit"
	"watchparty-service/internal/bus"
	"watchparty-service/internal/errs"
	"watchparty-service/internal/models"
)

const maxChatLength = 2000

// Router validates and relays playback control and chat events. It stamps
// the party id from the route and a server timestamp, then publishes the
// event otherwise unmodified. Control is not restricted to the host; any
// member may issue PLAY/PAUSE/SEEK.
type Router struct {
	bus   bus.EventBus
	audit audit.Recorder
	log   *zap.Logger
	now   func() time.Time
}

// NewRouter builds a playback control router. recorder may be audit.Nop().
func NewRouter(b bus.EventBus, recorder audit.Recorder, log *zap.Logger) *Router {
	if recorder == nil {
		recorder = audit.Nop()
	}
	return &Router{bus: b, audit: recorder, log: log, now: time.Now}
}

var controlEvents = map[models.EventType]struct{}{
	models.EventPlay:        {},
	models.EventPause:       {},
	models.EventSeek:        {},
	models.EventSyncRequest: {},
}

// RelayControl publishes a PLAY/PAUSE/SEEK/SYNC_REQUEST event for a party.
// The route's party id always wins over a client-supplied one; a
// client-supplied timestamp is kept for latency compensation and only filled
// in from the server clock when absent.
func (r *Router) RelayControl(ctx context.Context, partyID string, userID int64, userName string, event models.PartyEvent) error {
	if _, ok := controlEvents[event.Type]; !ok {
		return fmt.Errorf("%w: type %q not allowed on control channel", errs.ErrInvalidEvent, event.Type)
	}

	switch event.Type {
	case models.EventSeek:
		var seek models.SeekPayload
		if len(event.Payload) == 0 || json.Unmarshal(event.Payload, &seek) != nil {
			return fmt.Errorf("%w: SEEK requires a position payload", errs.ErrInvalidEvent)
		}
		if seek.Position < 0 {
			return fmt.Errorf("%w: negative seek position", errs.ErrInvalidEvent)
		}
	case models.EventPlay, models.EventPause:
		if len(event.Payload) > 0 {
			var seek models.SeekPayload
			if json.Unmarshal(event.Payload, &seek) != nil || seek.Position < 0 {
				return fmt.Errorf("%w: malformed position payload", errs.ErrInvalidEvent)
			}
		}
	case models.EventSyncRequest:
		// The request carries no position; a host client answers with its
		// own PLAY/PAUSE/SEEK. The server never arbitrates current time.
		event.Payload = nil
	}

	event.PartyID = partyID
	event.UserID = userID
	event.UserName = userName
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now().UTC()
	}
	return r.publish(ctx, event)
}

// RelayChat publishes a CHAT event. The type is forced server-side and the
// timestamp is always the server clock.
func (r *Router) RelayChat(ctx context.Context, partyID string, userID int64, userName string, event models.PartyEvent) error {
	var chat models.ChatPayload
	if len(event.Payload) == 0 || json.Unmarshal(event.Payload, &chat) != nil {
		return fmt.Errorf("%w: CHAT requires a text payload", errs.ErrInvalidEvent)
	}
	if strings.TrimSpace(chat.Text) == "" {
		return fmt.Errorf("%w: empty chat message", errs.ErrInvalidEvent)
	}
	if len(chat.Text) > maxChatLength {
		return fmt.Errorf("%w: chat message too long", errs.ErrInvalidEvent)
	}

	event.Type = models.EventChat
	event.PartyID = partyID
	event.UserID = userID
	event.UserName = userName
	event.Timestamp = r.now().UTC()
	return r.publish(ctx, event)
}

func (r *Router) publish(ctx context.Context, event models.PartyEvent) error {
	if err := publishEvent(ctx, r.bus, r.audit, event); err != nil {
		r.log.Error("relay publish failed",
			zap.String("party_id", event.PartyID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	return nil
}
