// Package surface связывает данные пресейла с открытой сессией пользователя:
// снимок, отсчёт до конца события, покупки и перечитывание по событиям шины.
package surface

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/presale-service/internal/bus"
	"github.com/magabrotheeeer/presale-service/internal/lib/money"
	"github.com/magabrotheeeer/presale-service/internal/lib/sl"
	"github.com/magabrotheeeer/presale-service/internal/models"
	"github.com/magabrotheeeer/presale-service/internal/services/countdown"
	"github.com/magabrotheeeer/presale-service/internal/services/presale"
)

// Backend операции сервиса пресейла, которые нужны поверхности.
type Backend interface {
	Load(ctx context.Context, user *models.User) presale.Snapshot
	Engine() *presale.Engine
	AnnounceCommit(ctx context.Context, sender string)
	Balances(ctx context.Context, user *models.User) (*models.UserBalances, error)
}

// Subscriber подписка на события шины настроек.
type Subscriber interface {
	SubscribeAll(topics []bus.Topic, h bus.Handler) (unsubscribe func())
}

// Options параметры поверхности.
type Options struct {
	RefreshDelay  time.Duration
	CountdownTick time.Duration
	LoadTimeout   time.Duration
	Clock         countdown.Clock
}

func (o Options) withDefaults() Options {
	if o.RefreshDelay <= 0 {
		o.RefreshDelay = 2 * time.Second
	}
	if o.CountdownTick <= 0 {
		o.CountdownTick = time.Second
	}
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = 15 * time.Second
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Surface поверхность пресейла одной сессии.
type Surface struct {
	id      string
	user    *models.User
	backend Backend
	sub     Subscriber
	opts    Options
	log     *slog.Logger

	mu            sync.Mutex
	snap          presale.Snapshot
	remaining     *countdown.Breakdown
	countdownKey  string
	countdownGen  uint64
	stopCountdown func()
	unsubscribe   func()
	refreshTimer  *time.Timer
	loadSeq       uint64
	appliedSeq    uint64
	mounted       bool
	closed        bool

	updates chan View
}

// New создаёт поверхность для пользователя; user может быть nil.
func New(user *models.User, backend Backend, sub Subscriber, opts Options, log *slog.Logger) *Surface {
	id := uuid.NewString()
	return &Surface{
		id:      id,
		user:    user,
		backend: backend,
		sub:     sub,
		opts:    opts.withDefaults(),
		log:     log.With(slog.String("surface_id", id)),
		updates: make(chan View, 1),
	}
}

// ID идентификатор поверхности.
func (s *Surface) ID() string {
	return s.id
}

// Owner сообщает, что поверхность открыта этим пользователем.
func (s *Surface) Owner(user *models.User) bool {
	return user != nil && s.user != nil && s.user.ID == user.ID
}

// Updates канал представлений. Хранит только последнее; закрывается при Close.
func (s *Surface) Updates() <-chan View {
	return s.updates
}

// Snapshot текущий локальный снимок.
func (s *Surface) Snapshot() presale.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// View текущее представление.
func (s *Surface) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BuildView(s.id, s.snap, s.remaining)
}

// Mount подписывается на все темы пресейла, загружает подтверждённый снимок
// и запускает отсчёт. Повторный вызов ничего не делает.
// Подписка идёт до загрузки: изменение, опубликованное во время чтения,
// вызывает перечитывание с большим номером.
func (s *Surface) Mount(ctx context.Context) {
	s.mu.Lock()
	if s.mounted || s.closed {
		s.mu.Unlock()
		return
	}
	s.mounted = true
	s.mu.Unlock()

	unsubscribe := s.sub.SubscribeAll(bus.PresaleTopics(), s.onChange)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	s.load(ctx)

	s.log.Debug("surface mounted")
}

// onChange обработчик шины: полное перечитывание для любой из тем.
// Не блокирует диспетчер шины.
func (s *Surface) onChange(ev bus.Event) {
	if ev.Sender == s.id {
		return
	}
	s.log.Debug("presale change received", slog.String("topic", string(ev.Topic)))
	go s.refresh()
}

func (s *Surface) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.LoadTimeout)
	defer cancel()
	s.load(ctx)
}

// load перечитывает снимок. Ответ, пришедший позже более нового, отбрасывается.
func (s *Surface) load(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.loadSeq++
	seq := s.loadSeq
	s.mu.Unlock()

	snap := s.backend.Load(ctx, s.user)

	s.mu.Lock()
	if s.closed || seq < s.appliedSeq {
		s.mu.Unlock()
		return
	}
	s.appliedSeq = seq
	s.snap = presale.Reduce(s.snap, presale.Refreshed{Snapshot: snap})
	s.emitLocked()
	s.mu.Unlock()

	s.syncCountdown()
}

// Purchase проводит покупку по текущему снимку. После успеха sold увеличивается
// локально, остальные получают presale-data-updated, а через RefreshDelay
// поверхность перечитывает баланс, событие и историю.
// Если балансы при загрузке не прочитались, они читаются заново перед проверкой.
func (s *Surface) Purchase(ctx context.Context, rawAmount string) presale.Outcome {
	s.mu.Lock()
	snap := s.snap
	s.mu.Unlock()

	balances := snap.Balances
	if s.user != nil && balances == nil {
		if _, err := money.ParseAmount(rawAmount); err == nil {
			b, err := s.backend.Balances(ctx, s.user)
			if err != nil {
				s.log.Error("failed to load balances before purchase", sl.Err(err))
				return presale.Outcome{Status: presale.StatusFailed, Message: presale.MsgGenericFailure}
			}
			balances = b
		}
	}

	out := s.backend.Engine().Purchase(ctx, s.user, snap.Resolution.Event, snap.Resolution.Override, balances, rawAmount)
	if !out.Committed() {
		return out
	}

	s.mu.Lock()
	if !s.closed {
		// Перечитывания, начатые до подтверждения, несут данные без этой покупки.
		s.loadSeq++
		s.appliedSeq = s.loadSeq
		s.snap = presale.Reduce(s.snap, presale.PurchaseCommitted{Amount: out.Amount})
		s.emitLocked()
		if s.refreshTimer != nil {
			s.refreshTimer.Stop()
		}
		s.refreshTimer = time.AfterFunc(s.opts.RefreshDelay, s.refresh)
	}
	s.mu.Unlock()

	s.backend.AnnounceCommit(context.WithoutCancel(ctx), s.id)
	return out
}

// Close отписывает поверхность, останавливает отсчёт и отложенное перечитывание.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.stopCountdown != nil {
		s.stopCountdown()
	}
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
	}
	close(s.updates)
	s.log.Debug("surface closed")
}

func countdownKey(ev *models.PresaleEvent) string {
	if ev == nil {
		return ""
	}
	return ev.ID + ":" + strconv.FormatBool(ev.IsActive)
}

// syncCountdown перезапускает отсчёт, если сменилось событие или его активность.
// Вызывается без удержания мьютекса: Start сразу отдаёт первое значение.
func (s *Surface) syncCountdown() {
	s.mu.Lock()
	ev := s.snap.Resolution.Event
	key := countdownKey(ev)
	if s.closed || key == s.countdownKey {
		s.mu.Unlock()
		return
	}
	if s.stopCountdown != nil {
		s.stopCountdown()
		s.stopCountdown = nil
	}
	s.countdownKey = key
	s.countdownGen++
	gen := s.countdownGen
	s.remaining = nil
	ev = ev.Clone()
	s.mu.Unlock()

	stop := countdown.Start(ev, s.opts.CountdownTick, s.opts.Clock, func(b countdown.Breakdown) {
		s.tick(gen, b)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.countdownGen {
		stop()
		return
	}
	s.stopCountdown = stop
}

func (s *Surface) tick(gen uint64, b countdown.Breakdown) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.countdownGen {
		return
	}
	s.remaining = &b
	s.emitLocked()
}

// emitLocked кладёт свежее представление в канал, вытесняя непрочитанное.
func (s *Surface) emitLocked() {
	v := BuildView(s.id, s.snap, s.remaining)
	select {
	case s.updates <- v:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- v
}
