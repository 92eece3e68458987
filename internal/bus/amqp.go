package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"watchparty-service/internal/errs"
	"watchparty-service/internal/models"
	"watchparty-service/internal/observability"
)

// AMQPBus implements EventBus over a RabbitMQ topic exchange. Each instance
// owns one exclusive auto-delete queue and binds/unbinds it per party with
// routing key party.{id}. A single dispatch goroutine preserves receipt order.
type AMQPBus struct {
	conn     *amqp.Connection
	pubCh    *amqp.Channel
	consCh   *amqp.Channel
	exchange string
	queue    string
	log      *zap.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewAMQP connects to RabbitMQ and starts the consume loop.
func NewAMQP(url, exchange string, log *zap.Logger) (*AMQPBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp publish channel: %w", err)
	}

	consCh, err := conn.Channel()
	if err != nil {
		pubCh.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp consume channel: %w", err)
	}

	if err := pubCh.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		consCh.Close()
		pubCh.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}

	queue, err := consCh.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		consCh.Close()
		pubCh.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}

	deliveries, err := consCh.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		consCh.Close()
		pubCh.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp consume: %w", err)
	}

	b := &AMQPBus{
		conn:     conn,
		pubCh:    pubCh,
		consCh:   consCh,
		exchange: exchange,
		queue:    queue.Name,
		log:      log,
		handlers: make(map[string]Handler),
	}
	go b.dispatch(deliveries)

	log.Info("amqp bus connected", zap.String("exchange", exchange), zap.String("queue", queue.Name))
	return b, nil
}

func routingKey(partyID string) string {
	return "party." + partyID
}

func (b *AMQPBus) Publish(ctx context.Context, partyID string, event models.PartyEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = b.pubCh.PublishWithContext(ctx, b.exchange, routingKey(partyID), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   event.Timestamp,
	})
	if err != nil {
		observability.IncBusPublishError()
		b.log.Error("amqp publish failed", zap.String("party_id", partyID), zap.Error(err))
		return fmt.Errorf("%w: %v", errs.ErrBusUnavailable, err)
	}
	return nil
}

func (b *AMQPBus) Subscribe(partyID string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handlers[partyID]; !ok {
		if err := b.consCh.QueueBind(b.queue, routingKey(partyID), b.exchange, false, nil); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrBusUnavailable, err)
		}
	}
	b.handlers[partyID] = handler
	return nil
}

func (b *AMQPBus) Unsubscribe(partyID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handlers[partyID]; !ok {
		return
	}
	delete(b.handlers, partyID)
	if err := b.consCh.QueueUnbind(b.queue, routingKey(partyID), b.exchange, nil); err != nil {
		b.log.Warn("amqp queue unbind failed", zap.String("party_id", partyID), zap.Error(err))
	}
}

func (b *AMQPBus) dispatch(deliveries <-chan amqp.Delivery) {
	for msg := range deliveries {
		var event models.PartyEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			b.log.Warn("amqp drop malformed event", zap.Error(err))
			continue
		}

		b.mu.RLock()
		handler := b.handlers[event.PartyID]
		b.mu.RUnlock()

		if handler != nil {
			handler(event)
		}
	}
}

// Ping reports whether the underlying connection is still open.
func (b *AMQPBus) Ping() error {
	if b.conn == nil || b.conn.IsClosed() {
		return errs.ErrBusUnavailable
	}
	return nil
}

func (b *AMQPBus) Close() error {
	if b.consCh != nil {
		_ = b.consCh.Close()
	}
	if b.pubCh != nil {
		_ = b.pubCh.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
