// Package models содержит доменные структуры пресейла: событие продажи,
// оперативные настройки администратора, балансы пользователя и историю покупок.
package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultEventID зарезервированный идентификатор локально синтезированного события.
const DefaultEventID = "default"

var (
	// ErrInvalidEvent событие нарушает числовые инварианты.
	ErrInvalidEvent = errors.New("presale event violates invariants")
)

// PresaleEvent ограниченная по времени и объёму продажа BIO по фиксированной цене.
type PresaleEvent struct {
	ID           string          `json:"id"`
	EventNumber  int             `json:"event_number"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	TotalSupply  decimal.Decimal `json:"total_supply"`
	Sold         decimal.Decimal `json:"sold"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at,omitempty"`
}

// IsDefault сообщает, что событие синтезировано локально и не хранится в бэкенде.
func (e *PresaleEvent) IsDefault() bool {
	return e.ID == DefaultEventID
}

// Remaining остаток токенов в событии без учёта оперативных настроек.
func (e *PresaleEvent) Remaining() decimal.Decimal {
	return e.TotalSupply.Sub(e.Sold)
}

// Validate проверяет инварианты: цена и объём положительны, 0 <= sold <= total, end > start.
func (e *PresaleEvent) Validate() error {
	switch {
	case e.ID == "":
		return ErrInvalidEvent
	case !e.PricePerUnit.IsPositive(), !e.TotalSupply.IsPositive():
		return ErrInvalidEvent
	case e.Sold.IsNegative(), e.Sold.GreaterThan(e.TotalSupply):
		return ErrInvalidEvent
	case !e.EndDate.After(e.StartDate):
		return ErrInvalidEvent
	}
	return nil
}

// Clone возвращает независимую копию события.
func (e *PresaleEvent) Clone() *PresaleEvent {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// DefaultEvent строит событие по умолчанию для офлайн-режима и ошибок бэкенда.
func DefaultEvent(now time.Time) *PresaleEvent {
	return &PresaleEvent{
		ID:           DefaultEventID,
		EventNumber:  1,
		PricePerUnit: decimal.RequireFromString("0.001"),
		TotalSupply:  decimal.NewFromInt(1_000_000),
		Sold:         decimal.Zero,
		StartDate:    now,
		EndDate:      now.AddDate(0, 0, 30),
		IsActive:     true,
	}
}
