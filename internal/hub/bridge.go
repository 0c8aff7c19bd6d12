package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/JakeConal/smart-restaurant/internal/events"
	"github.com/JakeConal/smart-restaurant/internal/order"
)

// Bridge consumes order events from the fanout exchange and republishes them
// into the in-process hub. One consumer goroutine per process keeps per-order
// delivery FIFO.
type Bridge struct {
	rmq *events.RabbitMQ
	hub *Hub
}

func NewBridge(rmq *events.RabbitMQ, h *Hub) *Bridge {
	return &Bridge{rmq: rmq, hub: h}
}

func (b *Bridge) Run(ctx context.Context) error {
	q, err := b.rmq.Channel.QueueDeclare(
		"",    // name (let server generate)
		false, // durable
		false, // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = b.rmq.Channel.QueueBind(q.Name, "", events.ExchangeOrderEvents, false, nil)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	messages, err := b.rmq.Channel.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	log.Info().Msg("hub bridge started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			var ev order.Event
			if err := json.Unmarshal(msg.Body, &ev); err != nil {
				log.Error().Err(err).Msg("failed to decode order event")
				continue
			}
			b.hub.Publish(ev.OrderID, ev)
		}
	}
}
