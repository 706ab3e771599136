// Package rabbitmq содержит помощники для работы с RabbitMQ: подключение
// с повторами, объявление fanout-обменника, публикация и потребление сообщений.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Connect подключается к брокеру, повторяя попытку retries раз с паузой delay.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	for range max(retries, 1) {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// SetupFanout открывает канал, объявляет fanout-обменник exchange и привязывает
// к нему эксклюзивную очередь с серверным именем. Очередь удаляется вместе с соединением,
// поэтому каждый экземпляр сервиса получает собственную копию всех сообщений.
func SetupFanout(conn *amqp.Connection, exchange string) (*amqp.Channel, string, error) {
	const op = "rabbitmq.SetupFanout"

	ch, err := conn.Channel()
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		_ = ch.Close()
		return nil, "", fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	q, err := ch.QueueDeclare(
		"",
		false,
		true,
		true,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, "", fmt.Errorf("%s: failed to declare queue: %w", op, err)
	}

	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, "", fmt.Errorf("%s: failed to bind queue %s: %w", op, q.Name, err)
	}

	return ch, q.Name, nil
}
