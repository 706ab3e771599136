// Package presale содержит бизнес-логику пресейла: определение активного события,
// проверку и проведение покупки, локальное состояние сессии и административные настройки.
package presale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/magabrotheeeer/presale-service/internal/bus"
	"github.com/magabrotheeeer/presale-service/internal/cache"
	"github.com/magabrotheeeer/presale-service/internal/gateway"
	"github.com/magabrotheeeer/presale-service/internal/lib/sl"
	"github.com/magabrotheeeer/presale-service/internal/models"
)

// Таблицы хостинга данных.
const (
	TableAdminSettings   = "admin_settings"
	TablePresaleEvents   = "presale_events"
	TableUsers           = "users"
	TableEnergyPurchases = "energy_purchases"
)

// Причины отката к событию по умолчанию.
const (
	FallbackNotConfigured = "not_configured"
	FallbackQueryFailed   = "query_failed"
	FallbackNoRows        = "no_rows"
	FallbackInvalidRow    = "invalid_row"
)

var errNoActiveEvent = errors.New("no active presale event")

// Cache описывает методы для кеширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(ctx context.Context, key string) error
}

// Observer получает сведения о работе сервиса для метрик.
type Observer interface {
	ResolverFallback(reason string)
	PurchaseOutcome(outcome string)
}

type noopObserver struct{}

func (noopObserver) ResolverFallback(string) {}
func (noopObserver) PurchaseOutcome(string)  {}

// Resolution результат разрешения: включён ли пресейл, активное событие
// и оперативное переопределение условий.
type Resolution struct {
	Enabled  bool                     `json:"enabled"`
	Event    *models.PresaleEvent     `json:"event"`
	Override *models.SettingsOverride `json:"override,omitempty"`
}

// Visible пресейл включён и есть событие для показа.
func (r Resolution) Visible() bool {
	return r.Enabled && r.Event != nil
}

// Terms эффективные условия продажи; ok=false, если события нет.
func (r Resolution) Terms() (models.Terms, bool) {
	if r.Event == nil {
		return models.Terms{}, false
	}
	return models.EffectiveTerms(r.Event, r.Override), true
}

// Clone возвращает независимую копию.
func (r Resolution) Clone() Resolution {
	return Resolution{
		Enabled:  r.Enabled,
		Event:    r.Event.Clone(),
		Override: r.Override.Clone(),
	}
}

// Resolver определяет единственное активное событие пресейла. Ошибки бэкенда
// никогда не возвращаются вызывающему: вместо них строится событие по умолчанию.
type Resolver struct {
	gw       gateway.Gateway
	cache    Cache
	log      *slog.Logger
	observer Observer
	cacheTTL time.Duration
	now      func() time.Time

	// generation растёт при каждом Invalidate; разрешение, прочитанное
	// в прошлом поколении, в кеш не пишется.
	generation atomic.Uint64
}

// NewResolver создаёт резолвер. cache и observer могут быть nil.
func NewResolver(gw gateway.Gateway, c Cache, observer Observer, log *slog.Logger, cacheTTL time.Duration) *Resolver {
	if c == nil {
		c = cache.Noop{}
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Resolver{
		gw:       gw,
		cache:    c,
		log:      log,
		observer: observer,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// ResolveActiveEvent возвращает активное событие либо nil, если пресейл выключен администратором.
func (r *Resolver) ResolveActiveEvent(ctx context.Context) *models.PresaleEvent {
	return r.Resolve(ctx).Event
}

// Resolve читает флаг включения, активное событие и переопределение условий.
// Подтверждённые бэкендом результаты кешируются; событие по умолчанию не кешируется никогда.
func (r *Resolver) Resolve(ctx context.Context) Resolution {
	const op = "presale.Resolve"
	log := r.log.With(slog.String("op", op))

	var cached Resolution
	found, err := r.cache.Get(ctx, cache.ResolutionKey, &cached)
	if err != nil {
		log.Warn("failed to read cached resolution", sl.Err(err))
	}
	if found && err == nil && (cached.Event == nil || !cached.Event.IsDefault()) {
		return cached
	}

	gen := r.generation.Load()
	enabled, confirmed := r.fetchEnabled(ctx)
	if !enabled {
		res := Resolution{Enabled: false}
		r.store(ctx, gen, res)
		return res
	}

	ev, err := r.fetchActiveEvent(ctx)
	if err != nil {
		reason := fallbackReason(err)
		r.observer.ResolverFallback(reason)
		if reason == FallbackNotConfigured {
			log.Debug("backend not configured, using default presale event")
		} else {
			log.Warn("using default presale event", slog.String("reason", reason), sl.Err(err))
		}
	}
	event := orDefault(ev, err, r.now())

	override, ok := r.fetchOverride(ctx)
	res := Resolution{Enabled: true, Event: event, Override: override}
	if confirmed && ok && !event.IsDefault() {
		r.store(ctx, gen, res)
	}
	return res
}

// store кеширует разрешение, прочитанное в поколении gen. Если сброс случился
// во время записи, запись удаляется повторно.
func (r *Resolver) store(ctx context.Context, gen uint64, res Resolution) {
	if r.generation.Load() != gen {
		return
	}
	if err := r.cache.Set(ctx, cache.ResolutionKey, res, r.cacheTTL); err != nil {
		r.log.Warn("failed to cache resolution", slog.String("key", cache.ResolutionKey), sl.Err(err))
		return
	}
	if r.generation.Load() != gen {
		r.dropCached(ctx)
	}
}

// Invalidate сбрасывает закешированное разрешение и отбрасывает чтения, начатые до сброса.
func (r *Resolver) Invalidate(ctx context.Context) {
	r.generation.Add(1)
	r.dropCached(ctx)
}

func (r *Resolver) dropCached(ctx context.Context) {
	if err := r.cache.Invalidate(ctx, cache.ResolutionKey); err != nil {
		r.log.Warn("failed to invalidate resolution cache", sl.Err(err))
	}
}

// InvalidateOn сбрасывает кеш при любом событии пресейла. Подписка должна
// регистрироваться раньше поверхностей, чтобы их перечитывание не попало на старый кеш.
func (r *Resolver) InvalidateOn(b *bus.Bus) (unsubscribe func()) {
	return b.SubscribeAll(bus.PresaleTopics(), func(bus.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		r.Invalidate(ctx)
	})
}

// fetchEnabled читает флаг presale_enabled. Только явное {"enabled": false} выключает пресейл;
// отсутствие строки и ошибки чтения считаются включённым пресейлом.
// confirmed=false, если ответ бэкенда получить не удалось.
func (r *Resolver) fetchEnabled(ctx context.Context) (enabled, confirmed bool) {
	row, found, err := r.gw.QueryOne(ctx, gateway.Query{
		Table:  TableAdminSettings,
		Filter: gateway.Filter{"key": models.SettingPresaleEnabled},
	})
	if err != nil {
		if !errors.Is(err, gateway.ErrNotConfigured) {
			r.log.Warn("failed to read presale flag", sl.Err(err))
		}
		return true, false
	}
	if !found {
		return true, true
	}

	var setting models.AdminSetting
	var flag models.EnabledFlag
	if err := gateway.Decode(row, &setting); err != nil {
		r.log.Warn("malformed presale flag row", sl.Err(err))
		return true, true
	}
	if err := json.Unmarshal(setting.Value, &flag); err != nil {
		r.log.Warn("malformed presale flag value", sl.Err(err))
		return true, true
	}
	return flag.Enabled, true
}

// fetchActiveEvent возвращает самое новое активное событие.
func (r *Resolver) fetchActiveEvent(ctx context.Context) (*models.PresaleEvent, error) {
	const op = "presale.fetchActiveEvent"

	row, found, err := r.gw.QueryOne(ctx, gateway.Query{
		Table:   TablePresaleEvents,
		Filter:  gateway.Filter{"is_active": true},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, errNoActiveEvent
	}

	var ev models.PresaleEvent
	if err := gateway.Decode(row, &ev); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, models.ErrInvalidEvent, err)
	}
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%s: event %s: %w", op, ev.ID, err)
	}
	return &ev, nil
}

// fetchOverride читает presale_settings. ok=false означает, что бэкенд не ответил.
func (r *Resolver) fetchOverride(ctx context.Context) (*models.SettingsOverride, bool) {
	row, found, err := r.gw.QueryOne(ctx, gateway.Query{
		Table:  TableAdminSettings,
		Filter: gateway.Filter{"key": models.SettingPresaleSettings},
	})
	if err != nil {
		if !errors.Is(err, gateway.ErrNotConfigured) {
			r.log.Warn("failed to read presale settings", sl.Err(err))
		}
		return nil, false
	}
	if !found {
		return nil, true
	}

	var setting models.AdminSetting
	var override models.SettingsOverride
	if err := gateway.Decode(row, &setting); err != nil {
		r.log.Warn("malformed presale settings row", sl.Err(err))
		return nil, true
	}
	if err := json.Unmarshal(setting.Value, &override); err != nil {
		r.log.Warn("malformed presale settings value", sl.Err(err))
		return nil, true
	}
	if dropped := override.Sanitize(); len(dropped) > 0 {
		r.log.Warn("ignoring invalid override fields", slog.Any("fields", dropped))
	}
	if override.IsEmpty() {
		return nil, true
	}
	return &override, true
}

// orDefault сводит результат чтения к событию: любая ошибка даёт событие по умолчанию.
func orDefault(ev *models.PresaleEvent, err error, now time.Time) *models.PresaleEvent {
	if err != nil || ev == nil {
		return models.DefaultEvent(now)
	}
	return ev
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, gateway.ErrNotConfigured):
		return FallbackNotConfigured
	case errors.Is(err, errNoActiveEvent):
		return FallbackNoRows
	case errors.Is(err, models.ErrInvalidEvent):
		return FallbackInvalidRow
	default:
		return FallbackQueryFailed
	}
}
