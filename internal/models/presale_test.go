package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestDefaultEvent(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ev := DefaultEvent(now)

	assert.True(t, ev.IsDefault())
	assert.Equal(t, 1, ev.EventNumber)
	assert.Equal(t, "0.001", ev.PricePerUnit.String())
	assert.Equal(t, "1000000", ev.TotalSupply.String())
	assert.True(t, ev.Sold.IsZero())
	assert.Equal(t, now, ev.StartDate)
	assert.Equal(t, now.AddDate(0, 0, 30), ev.EndDate)
	assert.True(t, ev.IsActive)
	assert.NoError(t, ev.Validate())
}

func TestPresaleEvent_Validate(t *testing.T) {
	now := time.Now()
	valid := func() *PresaleEvent { return DefaultEvent(now) }

	tests := []struct {
		name   string
		mutate func(e *PresaleEvent)
		ok     bool
	}{
		{name: "valid", mutate: func(_ *PresaleEvent) {}, ok: true},
		{name: "sold equals total", mutate: func(e *PresaleEvent) { e.Sold = e.TotalSupply }, ok: true},
		{name: "sold exceeds total", mutate: func(e *PresaleEvent) { e.Sold = e.TotalSupply.Add(decimal.NewFromInt(1)) }},
		{name: "negative sold", mutate: func(e *PresaleEvent) { e.Sold = decimal.NewFromInt(-1) }},
		{name: "zero price", mutate: func(e *PresaleEvent) { e.PricePerUnit = decimal.Zero }},
		{name: "zero supply", mutate: func(e *PresaleEvent) { e.TotalSupply = decimal.Zero }},
		{name: "end before start", mutate: func(e *PresaleEvent) { e.EndDate = e.StartDate.Add(-time.Second) }},
		{name: "missing id", mutate: func(e *PresaleEvent) { e.ID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)
			if tt.ok {
				assert.NoError(t, e.Validate())
			} else {
				assert.ErrorIs(t, e.Validate(), ErrInvalidEvent)
			}
		})
	}
}

func TestSettingsOverride_Sanitize(t *testing.T) {
	o := &SettingsOverride{
		PricePerUnit: dec("0"),
		TotalSupply:  dec("100"),
		Sold:         dec("150"),
	}
	dropped := o.Sanitize()

	assert.ElementsMatch(t, []string{"price_per_unit", "sold"}, dropped)
	assert.Nil(t, o.PricePerUnit)
	assert.Nil(t, o.Sold)
	assert.Equal(t, "100", o.TotalSupply.String())
}

func TestEffectiveTerms(t *testing.T) {
	ev := DefaultEvent(time.Now())
	ev.Sold = decimal.NewFromInt(150_000)

	terms := EffectiveTerms(ev, nil)
	assert.Equal(t, "850000", terms.Remaining().String())

	terms = EffectiveTerms(ev, &SettingsOverride{PricePerUnit: dec("0.002"), Sold: dec("900000")})
	assert.Equal(t, "0.002", terms.Price.String())
	assert.Equal(t, "1000000", terms.TotalSupply.String())
	assert.Equal(t, "100000", terms.Remaining().String())

	terms = EffectiveTerms(ev, &SettingsOverride{TotalSupply: dec("100000")})
	assert.True(t, terms.Remaining().IsZero(), "remaining is floored at zero")
}
