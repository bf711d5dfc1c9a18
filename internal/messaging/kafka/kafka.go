// Package kafka publishes storefront events to Kafka.
package kafka

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/xenking/storefront/internal/messaging"
)

// Publisher writes events to Kafka, one topic per event type.
type Publisher struct {
	w *kafkago.Writer
}

var _ messaging.Publisher = (*Publisher)(nil)

// NewPublisher creates a Publisher for the given brokers. Topics are taken
// from each event, so a single writer serves every event type.
func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		w: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// Messages converts events to Kafka messages.
func Messages(events ...messaging.Event) []kafkago.Message {
	msgs := make([]kafkago.Message, 0, len(events))
	for _, ev := range events {
		msgs = append(msgs, kafkago.Message{
			Topic: ev.Topic(),
			Key:   []byte(ev.Key()),
			Value: messaging.Marshal(ev),
		})
	}
	return msgs
}

// Publish writes events synchronously.
func (p *Publisher) Publish(ctx context.Context, events ...messaging.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := p.w.WriteMessages(ctx, Messages(events...)...); err != nil {
		return errors.Wrap(err, "write messages")
	}
	return nil
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	return p.w.Close()
}
