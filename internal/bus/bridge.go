package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/presale-service/internal/lib/sl"
)

// Transport канал доставки событий между экземплярами сервиса.
type Transport interface {
	Publish(body []byte) error
	Consume(ctx context.Context, handler func(body []byte) error) error
	Close() error
}

// Bridge пересылает локальные события шины другим экземплярам и публикует
// локально события, пришедшие от них. Собственные сообщения игнорируются,
// пересланные события обратно не отправляются.
type Bridge struct {
	log        *slog.Logger
	bus        *Bus
	transport  Transport
	instanceID string

	unsubscribe func()
}

// NewBridge создаёт мост со случайным идентификатором экземпляра.
func NewBridge(log *slog.Logger, b *Bus, transport Transport) *Bridge {
	return &Bridge{
		log:        log,
		bus:        b,
		transport:  transport,
		instanceID: uuid.NewString(),
	}
}

// InstanceID идентификатор экземпляра, которым помечаются исходящие события.
func (br *Bridge) InstanceID() string {
	return br.instanceID
}

// Start подписывается на все темы пресейла и начинает приём чужих событий.
func (br *Bridge) Start(ctx context.Context) error {
	const op = "bus.Bridge.Start"

	if err := br.transport.Consume(ctx, br.receive); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	br.unsubscribe = br.bus.SubscribeAll(PresaleTopics(), br.forward)
	br.log.Info("settings bus bridge started", slog.String("instance_id", br.instanceID))
	return nil
}

func (br *Bridge) forward(ev Event) {
	const op = "bus.Bridge.forward"
	if ev.Origin != "" {
		return
	}
	ev.Origin = br.instanceID
	body, err := json.Marshal(ev)
	if err != nil {
		br.log.Error("failed to encode bus event", slog.String("op", op), sl.Err(err))
		return
	}
	if err := br.transport.Publish(body); err != nil {
		br.log.Warn("failed to forward bus event",
			slog.String("op", op),
			slog.String("topic", string(ev.Topic)),
			sl.Err(err),
		)
	}
}

func (br *Bridge) receive(body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode bus event: %w", err)
	}
	if ev.Origin == br.instanceID {
		return nil
	}
	if ev.Origin == "" {
		return fmt.Errorf("bus event without origin")
	}
	if _, err := ParseTopic(string(ev.Topic)); err != nil {
		return err
	}
	br.bus.PublishEvent(ev)
	return nil
}

// Close отписывается от шины и закрывает транспорт.
func (br *Bridge) Close() error {
	if br.unsubscribe != nil {
		br.unsubscribe()
	}
	return br.transport.Close()
}
