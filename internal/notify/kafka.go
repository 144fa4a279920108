package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// Kafka writes events to a single topic keyed by booking id, so every event
// for one booking lands on the same partition in order.
type Kafka struct {
	w *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (k *Kafka) Publish(ctx context.Context, ev Event) error {
	const op = "notify.Kafka.Publish"

	body, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	err = k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.BookingID, 10)),
		Value: body,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
			{Key: "id", Value: []byte(ev.ID)},
		},
		Time: ev.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }
