// Package bus реализует шину изменений настроек пресейла: издатель-подписчик
// по именованным темам без полезной нагрузки. Обработчики выполняются асинхронно
// в одной горутине-диспетчере, публикация никогда не блокируется.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/presale-service/internal/lib/sl"
)

// Topic имя темы шины.
type Topic string

// Темы, на которые реагирует каждая открытая поверхность пресейла.
const (
	TopicPresaleSettingsUpdated Topic = "presale-settings-updated"
	TopicPresaleDataUpdated     Topic = "presale-data-updated"
	TopicAdminSettingsChanged   Topic = "admin-settings-changed"
)

// PresaleTopics возвращает все темы пресейла.
func PresaleTopics() []Topic {
	return []Topic{TopicPresaleSettingsUpdated, TopicPresaleDataUpdated, TopicAdminSettingsChanged}
}

// ParseTopic проверяет, что имя относится к известной теме.
func ParseTopic(name string) (Topic, error) {
	for _, t := range PresaleTopics() {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("bus: unknown topic %q", name)
}

// Event сигнал об изменении. Origin пуст для локальных публикаций и содержит
// источник (идентификатор экземпляра, "postgres") для пересланных событий.
// Sender локальный отправитель внутри процесса, между экземплярами не передаётся.
type Event struct {
	Topic  Topic     `json:"topic"`
	Origin string    `json:"origin,omitempty"`
	At     time.Time `json:"at"`
	Sender string    `json:"-"`
}

// Handler обработчик события.
type Handler func(Event)

type subscription struct {
	handler Handler
	active  bool
}

// Option настраивает шину.
type Option func(*Bus)

// WithPublishHook вызывает hook при каждой принятой публикации.
func WithPublishHook(hook func(Topic)) Option {
	return func(b *Bus) { b.onPublish = hook }
}

// Bus шина событий. Создаётся один раз на процесс и передаётся по ссылке.
type Bus struct {
	log       *slog.Logger
	onPublish func(Topic)
	now       func() time.Time

	mu      sync.Mutex
	cond    *sync.Cond
	subs    map[Topic][]*subscription
	queue   []Event
	closed  bool
	stopped chan struct{}
}

// New создаёт шину и запускает диспетчер.
func New(log *slog.Logger, opts ...Option) *Bus {
	b := &Bus{
		log:     log,
		now:     time.Now,
		subs:    make(map[Topic][]*subscription),
		stopped: make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	for _, opt := range opts {
		opt(b)
	}
	go b.run()
	return b
}

// Publish ставит событие темы в очередь доставки.
func (b *Bus) Publish(topic Topic) {
	b.PublishEvent(Event{Topic: topic})
}

// PublishFrom публикует событие от имени локального отправителя.
func (b *Bus) PublishFrom(topic Topic, sender string) {
	b.PublishEvent(Event{Topic: topic, Sender: sender})
}

// PublishEvent ставит в очередь готовое событие; используется мостами.
// После Close событие отбрасывается.
func (b *Bus) PublishEvent(ev Event) {
	if ev.At.IsZero() {
		ev.At = b.now()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.log.Debug("bus closed, event dropped", slog.String("topic", string(ev.Topic)))
		return
	}
	b.queue = append(b.queue, ev)
	b.mu.Unlock()
	b.cond.Signal()

	if b.onPublish != nil {
		b.onPublish(ev.Topic)
	}
}

// Subscribe регистрирует обработчик темы. Возвращаемая функция отписки идемпотентна;
// после неё обработчик не вызывается даже для событий, уже стоящих в очереди.
func (b *Bus) Subscribe(topic Topic, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}
	s := &subscription{handler: h, active: true}
	b.subs[topic] = append(b.subs[topic], s)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if !s.active {
			return
		}
		s.active = false
		list := b.subs[topic]
		for i, cur := range list {
			if cur == s {
				b.subs[topic] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
	}
}

// SubscribeAll подписывает один обработчик на несколько тем и возвращает общую отписку.
func (b *Bus) SubscribeAll(topics []Topic, h Handler) (unsubscribe func()) {
	unsubs := make([]func(), 0, len(topics))
	for _, t := range topics {
		unsubs = append(unsubs, b.Subscribe(t, h))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Subscribers возвращает число активных обработчиков темы.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

// Close останавливает приём событий. Уже поставленные в очередь события
// доставляются, после чего диспетчер завершается.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Done закрывается после завершения диспетчера.
func (b *Bus) Done() <-chan struct{} {
	return b.stopped
}

func (b *Bus) run() {
	defer close(b.stopped)
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		ev := b.queue[0]
		b.queue[0] = Event{}
		b.queue = b.queue[1:]
		targets := append([]*subscription(nil), b.subs[ev.Topic]...)
		b.mu.Unlock()

		for _, s := range targets {
			b.mu.Lock()
			active := s.active
			b.mu.Unlock()
			if active {
				b.deliver(s.handler, ev)
			}
		}
	}
}

func (b *Bus) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("bus handler panicked",
				slog.String("topic", string(ev.Topic)),
				sl.Err(fmt.Errorf("%v", r)),
			)
		}
	}()
	h(ev)
}
