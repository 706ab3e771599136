package presale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/presale-service/internal/bus"
	"github.com/magabrotheeeer/presale-service/internal/gateway"
	"github.com/magabrotheeeer/presale-service/internal/lib/money"
	"github.com/magabrotheeeer/presale-service/internal/lib/sl"
	"github.com/magabrotheeeer/presale-service/internal/models"
)

// ErrInvalidSettings переопределение нарушает ограничения полей события.
var ErrInvalidSettings = errors.New("invalid presale settings")

// Publisher публикует события шины настроек.
type Publisher interface {
	Publish(topic bus.Topic)
	PublishFrom(topic bus.Topic, sender string)
}

// Service объединяет резолвер, движок покупок и чтение аккаунтов для HTTP API
// и поверхностей пресейла.
type Service struct {
	resolver *Resolver
	engine   *Engine
	accounts *Accounts
	gw       gateway.Gateway
	pub      Publisher
	log      *slog.Logger
	now      func() time.Time
}

// NewService создаёт сервис пресейла.
func NewService(resolver *Resolver, engine *Engine, accounts *Accounts, gw gateway.Gateway, pub Publisher, log *slog.Logger) *Service {
	return &Service{
		resolver: resolver,
		engine:   engine,
		accounts: accounts,
		gw:       gw,
		pub:      pub,
		log:      log,
		now:      time.Now,
	}
}

// Resolve возвращает текущее разрешение активного события.
func (s *Service) Resolve(ctx context.Context) Resolution {
	return s.resolver.Resolve(ctx)
}

// Engine возвращает движок покупок.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Publisher возвращает издателя шины.
func (s *Service) Publisher() Publisher {
	return s.pub
}

// Load собирает подтверждённый снимок для пользователя; user может быть nil.
// Ошибки чтения балансов и истории не прерывают загрузку: соответствующие поля остаются пустыми.
func (s *Service) Load(ctx context.Context, user *models.User) Snapshot {
	const op = "presale.Load"
	snap := Snapshot{
		Resolution:  s.resolver.Resolve(ctx),
		Confidence:  Confirmed,
		RefreshedAt: s.now(),
	}
	if user == nil {
		return snap
	}

	log := s.log.With(slog.String("op", op), slog.String("user_id", user.ID))
	balances, err := s.accounts.Balances(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, gateway.ErrNotConfigured) {
			log.Warn("failed to load balances", sl.Err(err))
		}
	} else {
		snap.Balances = balances
	}

	history, err := s.accounts.History(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, gateway.ErrNotConfigured) {
			log.Warn("failed to load purchase history", sl.Err(err))
		}
	} else {
		snap.History = history
	}
	return snap
}

// History возвращает покупки пресейла пользователя.
func (s *Service) History(ctx context.Context, user *models.User) ([]models.PurchaseRecord, error) {
	return s.accounts.History(ctx, user.ID)
}

// Purchase разовая покупка без открытой поверхности: свежее разрешение, свежие балансы,
// проверка и вызов процедуры. После успеха публикует presale-data-updated.
func (s *Service) Purchase(ctx context.Context, user *models.User, rawAmount string) Outcome {
	const op = "presale.Service.Purchase"

	// Отказы, не зависящие от данных бэкенда, выдаются без сетевых запросов.
	if _, err := money.ParseAmount(rawAmount); err != nil || user == nil {
		return s.engine.Purchase(ctx, user, nil, nil, nil, rawAmount)
	}

	res := s.resolver.Resolve(ctx)
	balances, err := s.Balances(ctx, user)
	if err != nil {
		s.log.Error("failed to load balances before purchase",
			slog.String("op", op),
			slog.String("user_id", user.ID),
			sl.Err(err),
		)
		return Outcome{Status: StatusFailed, Message: MsgGenericFailure}
	}

	out := s.engine.Purchase(ctx, user, res.Event, res.Override, balances, rawAmount)
	if out.Committed() {
		s.AnnounceCommit(ctx, "")
	}
	return out
}

// Balances читает балансы пользователя. Без бэкенда возвращает nil без ошибки:
// покупка тогда отклоняется по средствам.
func (s *Service) Balances(ctx context.Context, user *models.User) (*models.UserBalances, error) {
	balances, err := s.accounts.Balances(ctx, user.ID)
	if errors.Is(err, gateway.ErrNotConfigured) {
		return nil, nil
	}
	return balances, err
}

// AnnounceCommit сбрасывает кеш разрешения и сообщает остальным о новой покупке.
func (s *Service) AnnounceCommit(ctx context.Context, sender string) {
	s.resolver.Invalidate(ctx)
	s.pub.PublishFrom(bus.TopicPresaleDataUpdated, sender)
}

// UpdateSettings сохраняет оперативное переопределение условий и рассылает presale-settings-updated.
func (s *Service) UpdateSettings(ctx context.Context, override models.SettingsOverride) error {
	const op = "presale.UpdateSettings"

	if dropped := override.Sanitize(); len(dropped) > 0 {
		return fmt.Errorf("%s: %w: %s", op, ErrInvalidSettings, strings.Join(dropped, ", "))
	}
	if err := s.upsertSetting(ctx, models.SettingPresaleSettings, override); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.resolver.Invalidate(ctx)
	s.pub.Publish(bus.TopicPresaleSettingsUpdated)
	s.log.Info("presale settings updated", slog.String("op", op))
	return nil
}

// SetEnabled включает или выключает пресейл и рассылает admin-settings-changed.
func (s *Service) SetEnabled(ctx context.Context, enabled bool) error {
	const op = "presale.SetEnabled"

	if err := s.upsertSetting(ctx, models.SettingPresaleEnabled, models.EnabledFlag{Enabled: enabled}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.resolver.Invalidate(ctx)
	s.pub.Publish(bus.TopicAdminSettingsChanged)
	s.log.Info("presale flag changed", slog.String("op", op), slog.Bool("enabled", enabled))
	return nil
}

func (s *Service) upsertSetting(ctx context.Context, key string, value any) error {
	filter := gateway.Filter{"key": key}
	_, found, err := s.gw.QueryOne(ctx, gateway.Query{Table: TableAdminSettings, Filter: filter})
	if err != nil {
		return err
	}
	if found {
		return s.gw.Update(ctx, TableAdminSettings, filter, map[string]any{"value": value})
	}
	_, err = s.gw.Insert(ctx, TableAdminSettings, map[string]any{"key": key, "value": value})
	return err
}
