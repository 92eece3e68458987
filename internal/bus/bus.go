// Package bus fans party events out to every instance that has local
// subscribers for a party. Delivery is best-effort at-least-once, ordered per
// channel on a single instance; no cross-publisher ordering is guaranteed.
package bus

import (
	"context"

	"watchparty-service/internal/models"
)

// Handler is invoked once per received event, on a bus-owned dispatch
// goroutine distinct from any connection's read goroutine.
type Handler func(event models.PartyEvent)

// EventBus is the publish/subscribe fabric between server instances.
type EventBus interface {
	// Publish sends an event to every instance subscribed to the party.
	// Fails with errs.ErrBusUnavailable when the fabric is unreachable.
	Publish(ctx context.Context, partyID string, event models.PartyEvent) error

	// Subscribe registers this instance's handler for a party. Calling it
	// again for the same party replaces the handler.
	Subscribe(partyID string, handler Handler) error

	// Unsubscribe drops this instance's interest in a party, bounding
	// fan-out cost once the last local member disconnects.
	Unsubscribe(partyID string)

	Close() error
}
