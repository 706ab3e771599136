package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/presale-service/internal/lib/rabbitmq"
)

// AMQPTransport транспорт моста поверх fanout-обменника RabbitMQ.
type AMQPTransport struct {
	log      *slog.Logger
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	queue    string
}

// DialAMQP подключается к брокеру и готовит обменник и личную очередь экземпляра.
func DialAMQP(log *slog.Logger, url string, retries int, delay time.Duration, exchange string) (*AMQPTransport, error) {
	const op = "bus.DialAMQP"

	conn, err := rabbitmq.Connect(url, retries, delay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, queue, err := rabbitmq.SetupFanout(conn, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &AMQPTransport{log: log, conn: conn, ch: ch, exchange: exchange, queue: queue}, nil
}

// Publish отправляет тело события в обменник.
func (t *AMQPTransport) Publish(body []byte) error {
	return rabbitmq.PublishJSON(t.ch, t.exchange, "", body)
}

// Consume запускает чтение личной очереди.
func (t *AMQPTransport) Consume(ctx context.Context, handler func([]byte) error) error {
	return rabbitmq.ConsumerMessage(ctx, t.log, t.ch, t.queue, handler)
}

// Close закрывает канал и соединение.
func (t *AMQPTransport) Close() error {
	_ = t.ch.Close()
	return t.conn.Close()
}
