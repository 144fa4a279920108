package notify

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ publishes events as persistent JSON messages on a durable queue
// through the default exchange.
type RabbitMQ struct {
	conn  *amqp.Connection
	queue string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewRabbitMQ(url, queue string) (*RabbitMQ, error) {
	const op = "notify.NewRabbitMQ"

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &RabbitMQ{conn: conn, queue: queue, ch: ch}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, ev Event) error {
	const op = "notify.RabbitMQ.Publish"

	body, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         string(ev.Type),
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}

	// amqp channels must not be shared between concurrent publishers.
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ch.PublishWithContext(ctx, "", r.queue, false, false, msg); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.ch.Close()
	return r.conn.Close()
}
