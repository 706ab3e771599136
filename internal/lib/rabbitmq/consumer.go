package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/presale-service/internal/lib/sl"
)

// ConsumerMessage запускает потребителя очереди. Сообщения обрабатываются
// последовательно в порядке доставки; при ошибке обработчика сообщение
// отклоняется без повторной постановки в очередь.
// Канал deliveries закрывается вместе с каналом AMQP, после чего горутина завершается.
func ConsumerMessage(ctx context.Context, log *slog.Logger, ch *amqp.Channel, queueName string, handler func([]byte) error) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				if err := handler(d.Body); err != nil {
					log.Warn("failed to handle message", slog.String("op", op), sl.Err(err))
					if nackErr := d.Nack(false, false); nackErr != nil {
						log.Error("failed to nack message", slog.String("op", op), sl.Err(nackErr))
					}
					continue
				}
				if ackErr := d.Ack(false); ackErr != nil {
					log.Error("failed to ack message", slog.String("op", op), sl.Err(ackErr))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
