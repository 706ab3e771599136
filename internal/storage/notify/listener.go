// Package notify переводит уведомления PostgreSQL (LISTEN presale_changes)
// в события шины настроек. Уведомления рассылают триггеры из миграций.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/magabrotheeeer/presale-service/internal/bus"
	"github.com/magabrotheeeer/presale-service/internal/lib/sl"
)

const (
	// Channel канал уведомлений об изменениях пресейла.
	Channel = "presale_changes"
	// Origin источник событий, пришедших из базы данных.
	Origin = "postgres"

	pingInterval = 90 * time.Second
)

// Publisher принимает события для локальной доставки.
type Publisher interface {
	PublishEvent(ev bus.Event)
}

// Listener слушает канал уведомлений и публикует события в шину.
type Listener struct {
	log      *slog.Logger
	pub      Publisher
	listener *pq.Listener
}

// New создаёт слушателя; соединение устанавливается и восстанавливается в фоне.
func New(log *slog.Logger, dsn string, pub Publisher) *Listener {
	l := &Listener{log: log, pub: pub}
	l.listener = pq.NewListener(dsn, time.Second, time.Minute, l.onEvent)
	return l
}

func (l *Listener) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		l.log.Debug("notify listener connected")
	case pq.ListenerEventDisconnected:
		l.log.Warn("notify listener disconnected", sl.Err(err))
	case pq.ListenerEventReconnected:
		l.log.Info("notify listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		l.log.Warn("notify listener connection attempt failed", sl.Err(err))
	}
}

// Run подписывается на канал и пересылает уведомления до отмены ctx.
func (l *Listener) Run(ctx context.Context) error {
	const op = "notify.Run"

	if err := l.listener.Listen(Channel); err != nil {
		_ = l.listener.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = l.listener.Close()
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-l.listener.Notify:
			if n == nil {
				// После переподключения часть уведомлений могла потеряться.
				l.publishAll()
				continue
			}
			l.handle(n.Extra)
		case <-ticker.C:
			go func() {
				if err := l.listener.Ping(); err != nil {
					l.log.Warn("notify listener ping failed", slog.String("op", op), sl.Err(err))
				}
			}()
		}
	}
}

func (l *Listener) handle(payload string) {
	topic, err := bus.ParseTopic(payload)
	if err != nil {
		l.log.Warn("unexpected notification payload", slog.String("payload", payload), sl.Err(err))
		return
	}
	l.pub.PublishEvent(bus.Event{Topic: topic, Origin: Origin, At: time.Now()})
}

func (l *Listener) publishAll() {
	now := time.Now()
	for _, topic := range bus.PresaleTopics() {
		l.pub.PublishEvent(bus.Event{Topic: topic, Origin: Origin, At: now})
	}
}
