package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Ключи таблицы admin_settings.
const (
	SettingPresaleEnabled  = "presale_enabled"
	SettingPresaleSettings = "presale_settings"
)

// AdminSetting строка таблицы admin_settings.
type AdminSetting struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// EnabledFlag значение ключа presale_enabled.
type EnabledFlag struct {
	Enabled bool `json:"enabled"`
}

// SettingsOverride частичное переопределение полей события, которое администратор
// рассылает всем открытым сессиям. Заданные поля имеют приоритет над полями события
// при расчётах доступности покупки.
type SettingsOverride struct {
	PricePerUnit *decimal.Decimal `json:"price_per_unit,omitempty"`
	TotalSupply  *decimal.Decimal `json:"total_supply,omitempty"`
	Sold         *decimal.Decimal `json:"sold,omitempty"`
}

// IsEmpty нет ни одного заданного поля.
func (o *SettingsOverride) IsEmpty() bool {
	return o == nil || (o.PricePerUnit == nil && o.TotalSupply == nil && o.Sold == nil)
}

// Sanitize отбрасывает поля, нарушающие те же ограничения, что и поля события,
// и возвращает имена отброшенных полей.
func (o *SettingsOverride) Sanitize() []string {
	if o == nil {
		return nil
	}
	var dropped []string
	if o.PricePerUnit != nil && !o.PricePerUnit.IsPositive() {
		o.PricePerUnit = nil
		dropped = append(dropped, "price_per_unit")
	}
	if o.TotalSupply != nil && !o.TotalSupply.IsPositive() {
		o.TotalSupply = nil
		dropped = append(dropped, "total_supply")
	}
	if o.Sold != nil && o.Sold.IsNegative() {
		o.Sold = nil
		dropped = append(dropped, "sold")
	}
	if o.Sold != nil && o.TotalSupply != nil && o.Sold.GreaterThan(*o.TotalSupply) {
		o.Sold = nil
		dropped = append(dropped, "sold")
	}
	return dropped
}

// Clone возвращает глубокую копию переопределения.
func (o *SettingsOverride) Clone() *SettingsOverride {
	if o == nil {
		return nil
	}
	c := &SettingsOverride{}
	if o.PricePerUnit != nil {
		v := *o.PricePerUnit
		c.PricePerUnit = &v
	}
	if o.TotalSupply != nil {
		v := *o.TotalSupply
		c.TotalSupply = &v
	}
	if o.Sold != nil {
		v := *o.Sold
		c.Sold = &v
	}
	return c
}

// Terms эффективные условия продажи после применения переопределения к событию.
type Terms struct {
	Price       decimal.Decimal `json:"price_per_unit"`
	TotalSupply decimal.Decimal `json:"total_supply"`
	Sold        decimal.Decimal `json:"sold"`
}

// Remaining остаток токенов по эффективным условиям; не бывает отрицательным.
func (t Terms) Remaining() decimal.Decimal {
	r := t.TotalSupply.Sub(t.Sold)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// EffectiveTerms применяет override к событию поле за полем.
func EffectiveTerms(e *PresaleEvent, o *SettingsOverride) Terms {
	t := Terms{
		Price:       e.PricePerUnit,
		TotalSupply: e.TotalSupply,
		Sold:        e.Sold,
	}
	if o == nil {
		return t
	}
	if o.PricePerUnit != nil {
		t.Price = *o.PricePerUnit
	}
	if o.TotalSupply != nil {
		t.TotalSupply = *o.TotalSupply
	}
	if o.Sold != nil {
		t.Sold = *o.Sold
	}
	return t
}
