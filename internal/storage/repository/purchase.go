package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/presale-service/internal/gateway"
	"github.com/magabrotheeeer/presale-service/internal/models"
)

// Сообщения бизнес-отказов процедуры покупки. Совпадают с SQL-версией в migrations.
const (
	MsgPresaleNotActive    = "Presale is not active"
	MsgInvalidAmount       = "Invalid purchase amount"
	MsgInsufficientSupply  = "Not enough tokens left in this presale"
	MsgUserNotFound        = "User not found"
	MsgInsufficientBalance = "Insufficient USDT balance"
	MsgPurchaseCompleted   = "Purchase completed"
)

func rejected(msg string) *gateway.ProcedureResult {
	return &gateway.ProcedureResult{Success: false, Message: msg, Data: map[string]any{}}
}

// processPresalePurchase атомарно проводит покупку: блокирует активное событие,
// затем пользователя, перепроверяет остаток и баланс, списывает USDT,
// начисляет BIO, увеличивает sold и пишет строку в energy_purchases.
// Порядок блокировок фиксирован, поэтому конкурентные покупки не взаимоблокируются.
func (s *Storage) processPresalePurchase(ctx context.Context, args json.RawMessage) (*gateway.ProcedureResult, error) {
	const op = "storage.processPresalePurchase"

	var req models.PurchaseRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, fmt.Errorf("%s: decode args: %w", op, err)
	}
	if !req.UnitAmount.IsPositive() || req.TotalCost.IsNegative() {
		return rejected(MsgInvalidAmount), nil
	}
	if _, err := uuid.Parse(req.UserID); err != nil {
		return rejected(MsgUserNotFound), nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var (
		eventID           string
		sold, totalSupply decimal.Decimal
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, sold, total_supply
		FROM presale_events
		WHERE is_active
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`).Scan(&eventID, &sold, &totalSupply)
	if errors.Is(err, sql.ErrNoRows) {
		return rejected(MsgPresaleNotActive), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: lock event: %w", op, err)
	}
	if sold.Add(req.UnitAmount).GreaterThan(totalSupply) {
		return rejected(MsgInsufficientSupply), nil
	}

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx,
		`SELECT usdt_balance FROM users WHERE id = $1 FOR UPDATE`, req.UserID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return rejected(MsgUserNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: lock user: %w", op, err)
	}
	if balance.LessThan(req.TotalCost) {
		return rejected(MsgInsufficientBalance), nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET usdt_balance = usdt_balance - $2,
		    bio_balance = bio_balance + $3
		WHERE id = $1`, req.UserID, req.TotalCost, req.UnitAmount); err != nil {
		return nil, fmt.Errorf("%s: debit user: %w", op, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE presale_events SET sold = sold + $2 WHERE id = $1`, eventID, req.UnitAmount); err != nil {
		return nil, fmt.Errorf("%s: update event: %w", op, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO energy_purchases (user_id, event_id, purchase_amount, cost, purchase_type)
		VALUES ($1, $2, $3, $4, $5)`,
		req.UserID, eventID, req.UnitAmount, req.TotalCost, models.PurchaseTypePresale); err != nil {
		return nil, fmt.Errorf("%s: insert history: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	return &gateway.ProcedureResult{
		Success: true,
		Message: MsgPurchaseCompleted,
		Data: map[string]any{
			"new_usdt_balance": balance.Sub(req.TotalCost).String(),
			"event_sold":       sold.Add(req.UnitAmount).String(),
		},
	}, nil
}
