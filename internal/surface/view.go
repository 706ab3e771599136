package surface

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/presale-service/internal/lib/money"
	"github.com/magabrotheeeer/presale-service/internal/models"
	"github.com/magabrotheeeer/presale-service/internal/services/countdown"
	"github.com/magabrotheeeer/presale-service/internal/services/presale"
)

// View данные, которые поверхность отдаёт для отображения.
type View struct {
	SurfaceID   string                   `json:"surface_id"`
	Visible     bool                     `json:"visible"`
	Enabled     bool                     `json:"enabled"`
	Event       *models.PresaleEvent     `json:"event,omitempty"`
	Override    *models.SettingsOverride `json:"override,omitempty"`
	Terms       *models.Terms            `json:"terms,omitempty"`
	Balances    *models.UserBalances     `json:"balances,omitempty"`
	History     []models.PurchaseRecord  `json:"history"`
	Confidence  presale.Confidence       `json:"confidence"`
	RefreshedAt time.Time                `json:"refreshed_at"`
	Countdown   *countdown.Breakdown     `json:"countdown,omitempty"`

	Remaining       *decimal.Decimal `json:"remaining,omitempty"`
	MaxPurchasable  *decimal.Decimal `json:"max_purchasable,omitempty"`
	ProgressPercent *decimal.Decimal `json:"progress_percent,omitempty"`
	Display         Display          `json:"display"`
}

// Display строки для показа пользователю.
type Display struct {
	Price       string `json:"price,omitempty"`
	Remaining   string `json:"remaining,omitempty"`
	USDTBalance string `json:"usdt_balance,omitempty"`
	Progress    string `json:"progress,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// BuildView собирает представление из снимка и текущего значения отсчёта.
func BuildView(id string, snap presale.Snapshot, remaining *countdown.Breakdown) View {
	v := View{
		SurfaceID:   id,
		Visible:     snap.Resolution.Visible(),
		Enabled:     snap.Resolution.Enabled,
		Event:       snap.Resolution.Event,
		Override:    snap.Resolution.Override,
		Balances:    snap.Balances,
		History:     snap.History,
		Confidence:  snap.Confidence,
		RefreshedAt: snap.RefreshedAt,
		Countdown:   remaining,
	}
	if v.History == nil {
		v.History = []models.PurchaseRecord{}
	}
	if snap.Balances != nil {
		v.Display.USDTBalance = money.Display(snap.Balances.USDTBalance)
	}

	terms, ok := snap.Resolution.Terms()
	if !ok {
		return v
	}
	v.Terms = &terms

	left := terms.Remaining()
	v.Remaining = &left
	v.Display.Remaining = money.Display(left)
	v.Display.Price = terms.Price.String()

	balance := decimal.Zero
	if snap.Balances != nil {
		balance = snap.Balances.USDTBalance
	}
	maxUnits := presale.MaxPurchasable(balance, terms)
	v.MaxPurchasable = &maxUnits

	if terms.TotalSupply.IsPositive() {
		p := decimal.Min(terms.Sold.Div(terms.TotalSupply).Mul(hundred), hundred).Round(2)
		v.ProgressPercent = &p
		v.Display.Progress = p.StringFixed(2) + "%"
	}
	return v
}
