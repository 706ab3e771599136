package rabbitmq

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Ошибки публикации.
var (
	ErrNoChannel   = errors.New("amqp channel is nil")
	ErrInvalidBody = errors.New("body is not valid json")
)

// PublishJSON отправляет в обменник уже закодированное JSON-тело.
// Сообщения не сохраняются на диске брокера.
func PublishJSON(ch *amqp.Channel, exchange, routingKey string, body []byte) error {
	const op = "rabbitmq.PublishJSON"
	if ch == nil {
		return fmt.Errorf("%s: %w", op, ErrNoChannel)
	}
	if !json.Valid(body) {
		return fmt.Errorf("%s: %w", op, ErrInvalidBody)
	}

	err := ch.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Transient,
			Timestamp:    time.Now().UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
