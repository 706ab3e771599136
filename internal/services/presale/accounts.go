package presale

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/presale-service/internal/gateway"
	"github.com/magabrotheeeer/presale-service/internal/models"
)

// Accounts читает балансы и историю покупок пользователя. Ничего не пишет.
type Accounts struct {
	gw           gateway.Gateway
	historyLimit int
}

// NewAccounts создаёт чтение аккаунтов; historyLimit ограничивает длину истории.
func NewAccounts(gw gateway.Gateway, historyLimit int) *Accounts {
	return &Accounts{gw: gw, historyLimit: historyLimit}
}

// Balances возвращает балансы пользователя.
func (a *Accounts) Balances(ctx context.Context, userID string) (*models.UserBalances, error) {
	const op = "presale.Balances"

	row, found, err := a.gw.QueryOne(ctx, gateway.Query{
		Table:  TableUsers,
		Filter: gateway.Filter{"id": userID},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: user %s: %w", op, userID, gateway.ErrNotFound)
	}

	var b models.UserBalances
	if err := gateway.Decode(row, &b); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &b, nil
}

// History возвращает покупки пресейла пользователя, новые первыми.
func (a *Accounts) History(ctx context.Context, userID string) ([]models.PurchaseRecord, error) {
	const op = "presale.History"

	rows, err := a.gw.QueryMany(ctx, gateway.Query{
		Table: TableEnergyPurchases,
		Filter: gateway.Filter{
			"user_id":       userID,
			"purchase_type": models.PurchaseTypePresale,
		},
		OrderBy: "purchased_at",
		Desc:    true,
		Limit:   a.historyLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	records, err := gateway.DecodeAll[models.PurchaseRecord](rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}
