// Package events publishes resolved callback outcomes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/nelc/ecommerce-hyperpay/internal/models"
)

type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher connects a writer to the outcome topic. brokers is a
// comma-separated address list.
func NewPublisher(brokers, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(strings.Split(brokers, ",")...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// PublishOutcome emits one event, keyed by transaction id so retries of the
// same payment land on the same partition.
func (p *Publisher) PublishOutcome(ctx context.Context, event models.OutcomeEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	key := event.TransactionID
	if key == "" {
		key = event.OrderNumber
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
