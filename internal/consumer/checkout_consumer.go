package consumer

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"
)

// CartClearer is what the consumer needs from the cart layer.
type CartClearer interface {
	Clear(ctx context.Context, sessionID string)
}

// Consumer drains checkout-completed events and empties the matching
// session's cart. This is the one place carts get cleared after a
// checkout: creation never clears, completion does, so an abandoned
// hosted checkout leaves the shopper's items in place.
type Consumer struct {
	carts  CartClearer
	reader *kafka.Reader
}

func New(carts CartClearer, brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{carts: carts, reader: reader}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.consumeOne(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		log.Printf("error closing checkout consumer: %v", err)
	}
}

func (c *Consumer) consumeOne(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("error reading checkout event: %v", err)
		}
		return
	}
	c.handle(ctx, m.Value)
}

// handle tolerates malformed payloads: a bad event is logged and
// skipped, never fatal to the consumer loop.
func (c *Consumer) handle(ctx context.Context, payload []byte) {
	var event struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("error parsing checkout event: %v", err)
		return
	}
	if event.SessionID == "" {
		log.Printf("checkout event missing session_id, skipping")
		return
	}

	c.carts.Clear(ctx, event.SessionID)
}
