package presale

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/presale-service/internal/models"
)

// Confidence степень достоверности локального снимка.
type Confidence string

// Снимок либо подтверждён бэкендом, либо содержит оптимистичные изменения.
const (
	Confirmed  Confidence = "confirmed"
	Optimistic Confidence = "optimistic"
)

// Snapshot локальная копия данных пресейла одной сессии.
type Snapshot struct {
	Resolution  Resolution              `json:"resolution"`
	Balances    *models.UserBalances    `json:"balances,omitempty"`
	History     []models.PurchaseRecord `json:"history"`
	Confidence  Confidence              `json:"confidence"`
	RefreshedAt time.Time               `json:"refreshed_at"`
}

// Action изменение локального снимка.
type Action interface {
	isAction()
}

// PurchaseCommitted покупка подтверждена процедурой; sold увеличивается до перечитывания.
type PurchaseCommitted struct {
	Amount decimal.Decimal
}

// Refreshed пришли авторитетные данные; снимок заменяется целиком.
type Refreshed struct {
	Snapshot Snapshot
}

func (PurchaseCommitted) isAction() {}
func (Refreshed) isAction()         {}

// Reduce применяет действие к снимку и возвращает новый снимок; исходный не меняется.
func Reduce(s Snapshot, a Action) Snapshot {
	switch act := a.(type) {
	case PurchaseCommitted:
		if s.Resolution.Event == nil || !act.Amount.IsPositive() {
			return s
		}
		next := s
		next.Resolution = s.Resolution.Clone()
		// Увеличиваем то значение sold, которое участвует в расчётах.
		if next.Resolution.Override != nil && next.Resolution.Override.Sold != nil {
			sold := next.Resolution.Override.Sold.Add(act.Amount)
			next.Resolution.Override.Sold = &sold
		} else {
			next.Resolution.Event.Sold = next.Resolution.Event.Sold.Add(act.Amount)
		}
		next.Confidence = Optimistic
		return next
	case Refreshed:
		next := act.Snapshot
		next.Confidence = Confirmed
		return next
	default:
		return s
	}
}
