package presale

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/presale-service/internal/gateway"
	"github.com/magabrotheeeer/presale-service/internal/lib/money"
	"github.com/magabrotheeeer/presale-service/internal/lib/sl"
	"github.com/magabrotheeeer/presale-service/internal/models"
)

// ProcedurePurchase имя атомарной процедуры покупки на стороне бэкенда.
const ProcedurePurchase = "process_presale_purchase"

// Status итог попытки покупки.
type Status string

// Итоги попытки покупки.
const (
	StatusCommitted          Status = "committed"
	StatusNotAuthenticated   Status = "not_authenticated"
	StatusInvalidAmount      Status = "invalid_amount"
	StatusInsufficientFunds  Status = "insufficient_funds"
	StatusInsufficientSupply Status = "insufficient_supply"
	StatusUnavailable        Status = "unavailable"
	StatusFailed             Status = "failed"
)

// Phase состояние жизненного цикла одной попытки покупки.
type Phase string

// Состояния попытки: Idle → Validating → Rejected | Submitting → Failed | Committed → Idle.
const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseRejected   Phase = "rejected"
	PhaseSubmitting Phase = "submitting"
	PhaseFailed     Phase = "failed"
	PhaseCommitted  Phase = "committed"
)

// Сообщения для пользователя.
const (
	MsgNotAuthenticated   = "Please sign in to buy BIO"
	MsgInvalidAmount      = "Enter a positive amount of BIO with at most 6 decimal places"
	MsgInsufficientFunds  = "Insufficient USDT balance"
	MsgInsufficientSupply = "Not enough tokens left in this presale"
	MsgUnavailable        = "Presale is not active"
	MsgGenericFailure     = "Purchase failed, please try again"
	MsgCommitted          = "Purchase completed"
)

// Outcome результат попытки покупки.
type Outcome struct {
	Status  Status          `json:"status"`
	Message string          `json:"message"`
	Amount  decimal.Decimal `json:"amount"`
	Cost    decimal.Decimal `json:"cost"`
	// MaxPurchasable верхняя граница количества при отказе по средствам или остатку.
	MaxPurchasable *decimal.Decimal `json:"max_purchasable,omitempty"`
}

// Committed покупка проведена бэкендом.
func (o Outcome) Committed() bool {
	return o.Status == StatusCommitted
}

// Rejected покупка отклонена до обращения к бэкенду.
func (o Outcome) Rejected() bool {
	switch o.Status {
	case StatusNotAuthenticated, StatusInvalidAmount, StatusInsufficientFunds,
		StatusInsufficientSupply, StatusUnavailable:
		return true
	}
	return false
}

// MaxPurchasable наибольшее количество, которое позволяют и баланс, и остаток.
func MaxPurchasable(balance decimal.Decimal, terms models.Terms) decimal.Decimal {
	return decimal.Min(money.Affordable(balance, terms.Price), terms.Remaining())
}

// Engine проверяет и проводит покупку против разрешённого события и баланса пользователя.
type Engine struct {
	gw            gateway.Gateway
	log           *slog.Logger
	observer      Observer
	submitTimeout time.Duration

	mu        sync.RWMutex
	observers []func(from, to Phase)
}

// NewEngine создаёт движок покупок. observer может быть nil.
func NewEngine(gw gateway.Gateway, observer Observer, log *slog.Logger) *Engine {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Engine{
		gw:            gw,
		log:           log,
		observer:      observer,
		submitTimeout: 15 * time.Second,
	}
}

// Observe регистрирует обработчик переходов между состояниями попытки.
func (e *Engine) Observe(fn func(from, to Phase)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

type attempt struct {
	e     *Engine
	phase Phase
}

func (a *attempt) to(next Phase) {
	a.e.mu.RLock()
	observers := a.e.observers
	a.e.mu.RUnlock()
	for _, fn := range observers {
		fn(a.phase, next)
	}
	a.phase = next
}

// Validate проверяет предусловия покупки без обращения к бэкенду.
// Возвращает запрос к процедуре либо итог отказа.
func Validate(user *models.User, event *models.PresaleEvent, override *models.SettingsOverride,
	balances *models.UserBalances, rawAmount string) (*models.PurchaseRequest, *Outcome) {
	if user == nil {
		return nil, &Outcome{Status: StatusNotAuthenticated, Message: MsgNotAuthenticated}
	}

	amount, err := money.ParseAmount(rawAmount)
	if err != nil {
		return nil, &Outcome{Status: StatusInvalidAmount, Message: MsgInvalidAmount}
	}

	if event == nil {
		return nil, &Outcome{Status: StatusUnavailable, Message: MsgUnavailable}
	}

	terms := models.EffectiveTerms(event, override)
	balance := decimal.Zero
	if balances != nil {
		balance = balances.USDTBalance
	}

	cost := money.Cost(amount, terms.Price)
	remaining := terms.Remaining()
	noFunds := cost.GreaterThan(balance)
	noSupply := amount.GreaterThan(remaining)

	if noFunds || noSupply {
		affordable := money.Affordable(balance, terms.Price)
		limit := decimal.Min(affordable, remaining)
		out := &Outcome{Amount: amount, Cost: cost, MaxPurchasable: &limit}
		// При двух нарушениях сообщаем о более жёсткой границе; при равенстве о средствах.
		if noFunds && (!noSupply || affordable.LessThanOrEqual(remaining)) {
			out.Status, out.Message = StatusInsufficientFunds, MsgInsufficientFunds
		} else {
			out.Status, out.Message = StatusInsufficientSupply, MsgInsufficientSupply
		}
		return nil, out
	}

	return &models.PurchaseRequest{
		UserID:     user.ID,
		UnitAmount: amount,
		TotalCost:  cost,
	}, nil
}

// Purchase проверяет предусловия и, если они выполнены, вызывает атомарную процедуру.
// Отправленный запрос не отменяется вместе с ctx: вызывающий лишь может не дождаться результата.
func (e *Engine) Purchase(ctx context.Context, user *models.User, event *models.PresaleEvent,
	override *models.SettingsOverride, balances *models.UserBalances, rawAmount string) Outcome {
	const op = "presale.Purchase"
	log := e.log.With(slog.String("op", op))

	a := &attempt{e: e, phase: PhaseIdle}
	defer a.to(PhaseIdle)
	a.to(PhaseValidating)

	req, rejection := Validate(user, event, override, balances, rawAmount)
	if rejection != nil {
		a.to(PhaseRejected)
		e.observer.PurchaseOutcome(string(rejection.Status))
		log.Info("purchase rejected", slog.String("status", string(rejection.Status)))
		return *rejection
	}

	a.to(PhaseSubmitting)
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.submitTimeout)
	defer cancel()

	res, err := e.gw.CallProcedure(submitCtx, ProcedurePurchase, req)
	if err != nil {
		a.to(PhaseFailed)
		e.observer.PurchaseOutcome(string(StatusFailed))
		if errors.Is(err, gateway.ErrNotConfigured) {
			log.Warn("purchase attempted without backend")
		} else {
			log.Error("purchase submission failed", sl.Err(err))
		}
		return Outcome{Status: StatusFailed, Message: MsgGenericFailure, Amount: req.UnitAmount, Cost: req.TotalCost}
	}
	if !res.Success {
		a.to(PhaseFailed)
		e.observer.PurchaseOutcome(string(StatusFailed))
		msg := res.Message
		if msg == "" {
			msg = MsgGenericFailure
		}
		log.Info("purchase refused by backend", slog.String("reason", msg))
		return Outcome{Status: StatusFailed, Message: msg, Amount: req.UnitAmount, Cost: req.TotalCost}
	}

	a.to(PhaseCommitted)
	e.observer.PurchaseOutcome(string(StatusCommitted))
	log.Info("purchase committed",
		slog.String("user_id", req.UserID),
		sl.Dec("amount", req.UnitAmount),
		sl.Dec("cost", req.TotalCost),
	)
	return Outcome{Status: StatusCommitted, Message: MsgCommitted, Amount: req.UnitAmount, Cost: req.TotalCost}
}
