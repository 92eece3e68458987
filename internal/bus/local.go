package bus

import (
	"context"
	"sync"

	"watchparty-service/internal/models"
)

// Local is an in-process fabric shared by one or more nodes. It backs tests
// and single-node deployments where AMQP is disabled; each Node behaves like
// one server instance's view of the bus.
type Local struct {
	mu    sync.RWMutex
	nodes []*LocalNode
}

// NewLocal creates an empty in-process fabric.
func NewLocal() *Local {
	return &Local{}
}

// Node attaches a new instance-scoped EventBus to the fabric.
func (l *Local) Node() *LocalNode {
	node := &LocalNode{fabric: l, handlers: make(map[string]Handler)}
	l.mu.Lock()
	l.nodes = append(l.nodes, node)
	l.mu.Unlock()
	return node
}

func (l *Local) deliver(event models.PartyEvent) {
	l.mu.RLock()
	nodes := make([]*LocalNode, len(l.nodes))
	copy(nodes, l.nodes)
	l.mu.RUnlock()

	for _, node := range nodes {
		node.mu.RLock()
		handler := node.handlers[event.PartyID]
		node.mu.RUnlock()
		if handler != nil {
			handler(event)
		}
	}
}

// LocalNode is one instance's subscription set on a Local fabric.
type LocalNode struct {
	fabric   *Local
	mu       sync.RWMutex
	handlers map[string]Handler
}

func (n *LocalNode) Publish(_ context.Context, _ string, event models.PartyEvent) error {
	n.fabric.deliver(event)
	return nil
}

func (n *LocalNode) Subscribe(partyID string, handler Handler) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[partyID] = handler
	return nil
}

func (n *LocalNode) Unsubscribe(partyID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.handlers, partyID)
}

func (n *LocalNode) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = make(map[string]Handler)
	return nil
}
