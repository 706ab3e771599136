package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/presale-service/internal/models"
	"github.com/magabrotheeeer/presale-service/internal/services/countdown"
	"github.com/magabrotheeeer/presale-service/internal/services/presale"
)

func TestBuildView(t *testing.T) {
	ev := testEvent("ev-1", "150000")
	price := dec("0.002")

	tests := []struct {
		name         string
		snap         presale.Snapshot
		wantVisible  bool
		wantRemain   string
		wantMax      string
		wantProgress string
		wantPrice    string
		wantBalance  string
	}{
		{
			name:         "event and balances",
			snap:         snapshotOf(ev, "100"),
			wantVisible:  true,
			wantRemain:   "850000",
			wantMax:      "100000",
			wantProgress: "15.00%",
			wantPrice:    "0.001",
			wantBalance:  "100.00",
		},
		{
			name: "override price limits max purchasable",
			snap: presale.Snapshot{
				Resolution: presale.Resolution{Enabled: true, Event: ev, Override: &models.SettingsOverride{PricePerUnit: &price}},
				Balances:   &models.UserBalances{USDTBalance: dec("100.126")},
			},
			wantVisible:  true,
			wantRemain:   "850000",
			wantMax:      "50063",
			wantProgress: "15.00%",
			wantPrice:    "0.002",
			wantBalance:  "100.13",
		},
		{
			name:         "anonymous can buy nothing",
			snap:         presale.Snapshot{Resolution: presale.Resolution{Enabled: true, Event: ev}},
			wantVisible:  true,
			wantRemain:   "850000",
			wantMax:      "0",
			wantProgress: "15.00%",
			wantPrice:    "0.001",
		},
		{
			name:        "disabled presale",
			snap:        presale.Snapshot{Resolution: presale.Resolution{Enabled: false}},
			wantVisible: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := BuildView("s-1", tt.snap, nil)

			assert.Equal(t, "s-1", v.SurfaceID)
			assert.Equal(t, tt.wantVisible, v.Visible)
			assert.NotNil(t, v.History)
			assert.Equal(t, tt.wantBalance, v.Display.USDTBalance)
			if tt.wantRemain == "" {
				assert.Nil(t, v.Terms)
				assert.Nil(t, v.Remaining)
				assert.Nil(t, v.MaxPurchasable)
				return
			}
			require.NotNil(t, v.Remaining)
			assert.True(t, v.Remaining.Equal(dec(tt.wantRemain)), "remaining %s", v.Remaining)
			require.NotNil(t, v.MaxPurchasable)
			assert.True(t, v.MaxPurchasable.Equal(dec(tt.wantMax)), "max %s", v.MaxPurchasable)
			assert.Equal(t, tt.wantProgress, v.Display.Progress)
			assert.Equal(t, tt.wantPrice, v.Display.Price)
		})
	}
}

func TestBuildView_ProgressCapped(t *testing.T) {
	ev := testEvent("ev-1", "1000000")
	sold := dec("2000000")
	snap := presale.Snapshot{Resolution: presale.Resolution{
		Enabled:  true,
		Event:    ev,
		Override: &models.SettingsOverride{Sold: &sold},
	}}

	v := BuildView("s-1", snap, &countdown.Breakdown{Seconds: 5})

	require.NotNil(t, v.ProgressPercent)
	assert.Equal(t, "100.00%", v.Display.Progress)
	assert.True(t, v.Remaining.IsZero())
	assert.Equal(t, int64(5), v.Countdown.Total())
}
