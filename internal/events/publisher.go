package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/JakeConal/smart-restaurant/internal/order"
)

// Publisher implements order.EventPublisher on the fanout exchange.
type Publisher struct {
	rmq *RabbitMQ
}

func NewPublisher(rmq *RabbitMQ) *Publisher {
	return &Publisher{rmq: rmq}
}

func (p *Publisher) Publish(ctx context.Context, ev order.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.rmq.Channel.PublishWithContext(pubCtx,
		ExchangeOrderEvents, // exchange
		"",                  // routing key
		false,               // mandatory
		false,               // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    ev.OccurredAt,
		})
	if err != nil {
		return err
	}

	log.Debug().Str("order_id", ev.OrderID).Str("type", string(ev.Type)).Int64("seq", ev.Seq).
		Msg("order event published")
	return nil
}
