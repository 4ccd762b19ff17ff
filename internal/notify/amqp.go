package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeclareQueue declares the durable notification queue.
func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
}

// Publisher enqueues messages for cmd/notifyd.
type Publisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func DialPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := DeclareQueue(ch, queue); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", queue, err)
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Notify(ctx context.Context, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}
	// channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.ch.Close()
	return p.conn.Close()
}

// ErrDeliveriesClosed means the broker or connection went away under Consume.
var ErrDeliveriesClosed = errors.New("notify: delivery channel closed")

// Consume delivers queued messages through n until msgs closes or ctx ends.
// It never returns nil: a closed channel is ErrDeliveriesClosed.
// Success acks; malformed or permanently failing messages are dropped;
// anything else is requeued.
func Consume(ctx context.Context, msgs <-chan amqp.Delivery, n Notifier, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return ErrDeliveriesClosed
			}
			handleDelivery(ctx, d, n, log)
		}
	}
}

func handleDelivery(ctx context.Context, d amqp.Delivery, n Notifier, log *slog.Logger) {
	var m Message
	if err := json.Unmarshal(d.Body, &m); err != nil || m.To == "" {
		log.WarnContext(ctx, "dropping malformed notification", "delivery_tag", d.DeliveryTag, "err", err)
		_ = d.Nack(false, false)
		return
	}
	err := n.Notify(ctx, m)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrPermanent):
		log.ErrorContext(ctx, "notification failed", "to", m.To, "err", err)
		_ = d.Nack(false, false)
	default:
		log.WarnContext(ctx, "notification retry", "to", m.To, "redelivered", d.Redelivered, "err", err)
		// a second transient failure is dropped to avoid a hot loop
		_ = d.Nack(false, !d.Redelivered)
	}
}
