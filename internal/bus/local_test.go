package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"watchparty-service/internal/models"
)

func TestLocalFanOutAcrossNodes(t *testing.T) {
	fabric := NewLocal()
	nodeA := fabric.Node()
	nodeB := fabric.Node()

	var gotA, gotB []models.PartyEvent
	require.NoError(t, nodeA.Subscribe("p1", func(e models.PartyEvent) { gotA = append(gotA, e) }))
	require.NoError(t, nodeB.Subscribe("p1", func(e models.PartyEvent) { gotB = append(gotB, e) }))

	event := models.PartyEvent{PartyID: "p1", UserID: 42, Type: models.EventPlay, Timestamp: time.Now()}
	require.NoError(t, nodeA.Publish(context.Background(), "p1", event))

	require.Len(t, gotA, 1)
	require.Len(t, gotB, 1)
	require.Equal(t, models.EventPlay, gotB[0].Type)
	require.Equal(t, int64(42), gotB[0].UserID)
}

func TestLocalDeliveryOrder(t *testing.T) {
	fabric := NewLocal()
	node := fabric.Node()

	var got []models.EventType
	require.NoError(t, node.Subscribe("p1", func(e models.PartyEvent) { got = append(got, e.Type) }))

	ctx := context.Background()
	for _, typ := range []models.EventType{models.EventPlay, models.EventSeek, models.EventPause} {
		require.NoError(t, node.Publish(ctx, "p1", models.PartyEvent{PartyID: "p1", Type: typ}))
	}

	require.Equal(t, []models.EventType{models.EventPlay, models.EventSeek, models.EventPause}, got)
}

func TestLocalUnsubscribeStopsDelivery(t *testing.T) {
	fabric := NewLocal()
	node := fabric.Node()

	calls := 0
	require.NoError(t, node.Subscribe("p1", func(models.PartyEvent) { calls++ }))
	node.Unsubscribe("p1")

	require.NoError(t, node.Publish(context.Background(), "p1", models.PartyEvent{PartyID: "p1", Type: models.EventChat}))
	require.Zero(t, calls)
}

func TestLocalIgnoresOtherParties(t *testing.T) {
	fabric := NewLocal()
	node := fabric.Node()

	calls := 0
	require.NoError(t, node.Subscribe("p1", func(models.PartyEvent) { calls++ }))

	require.NoError(t, node.Publish(context.Background(), "p2", models.PartyEvent{PartyID: "p2", Type: models.EventChat}))
	require.Zero(t, calls)
}
