package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoleAdmin роль администратора в токене доступа.
const RoleAdmin = "admin"

// User аутентифицированный пользователь, извлечённый из токена доступа.
type User struct {
	ID   string
	Role string
}

// UserBalances балансы пользователя. Пресейл только читает их,
// списание USDT выполняет атомарная процедура бэкенда.
type UserBalances struct {
	UserID      string          `json:"id"`
	USDTBalance decimal.Decimal `json:"usdt_balance"`
	BIOBalance  decimal.Decimal `json:"bio_balance"`
	OREBalance  decimal.Decimal `json:"ore_balance"`
}

// PurchaseTypePresale дискриминатор покупок пресейла в energy_purchases.
const PurchaseTypePresale = "presale"

// PurchaseRecord запись истории покупок, принадлежит бэкенду.
type PurchaseRecord struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	Cost           decimal.Decimal `json:"cost"`
	PurchasedAt    time.Time       `json:"purchased_at"`
	PurchaseType   string          `json:"purchase_type"`
}

// PurchaseRequest аргументы атомарной процедуры покупки.
type PurchaseRequest struct {
	UserID     string          `json:"p_user_id"`
	UnitAmount decimal.Decimal `json:"p_amount"`
	TotalCost  decimal.Decimal `json:"p_total_cost"`
}
