package presale

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/presale-service/internal/bus"
	"github.com/magabrotheeeer/presale-service/internal/gateway"
	"github.com/magabrotheeeer/presale-service/internal/models"
)

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) QueryOne(ctx context.Context, q gateway.Query) (gateway.Row, bool, error) {
	args := m.Called(ctx, q)
	row, _ := args.Get(0).(gateway.Row)
	return row, args.Bool(1), args.Error(2)
}

func (m *GatewayMock) QueryMany(ctx context.Context, q gateway.Query) ([]gateway.Row, error) {
	args := m.Called(ctx, q)
	rows, _ := args.Get(0).([]gateway.Row)
	return rows, args.Error(1)
}

func (m *GatewayMock) Insert(ctx context.Context, table string, values any) (gateway.Row, error) {
	args := m.Called(ctx, table, values)
	row, _ := args.Get(0).(gateway.Row)
	return row, args.Error(1)
}

func (m *GatewayMock) Update(ctx context.Context, table string, filter gateway.Filter, patch any) error {
	return m.Called(ctx, table, filter, patch).Error(0)
}

func (m *GatewayMock) CallProcedure(ctx context.Context, name string, args any) (*gateway.ProcedureResult, error) {
	a := m.Called(ctx, name, args)
	res, _ := a.Get(0).(*gateway.ProcedureResult)
	return res, a.Error(1)
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string, result any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, result)
}

func (c *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = b
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

type recordingObserver struct {
	mu        sync.Mutex
	fallbacks []string
	outcomes  []string
}

func (o *recordingObserver) ResolverFallback(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallbacks = append(o.fallbacks, reason)
}

func (o *recordingObserver) PurchaseOutcome(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

type PublisherMock struct {
	mu     sync.Mutex
	events []bus.Event
}

func (p *PublisherMock) Publish(topic bus.Topic) {
	p.PublishFrom(topic, "")
}

func (p *PublisherMock) PublishFrom(topic bus.Topic, sender string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, bus.Event{Topic: topic, Sender: sender})
}

func (p *PublisherMock) topics() []bus.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]bus.Topic, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Topic)
	}
	return out
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func testEvent() *models.PresaleEvent {
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return &models.PresaleEvent{
		ID:           "9b7e1c1e-3f7a-4bb0-8f7c-1c9d2a6e0a11",
		EventNumber:  4,
		PricePerUnit: dec("0.001"),
		TotalSupply:  dec("1000000"),
		Sold:         dec("150000"),
		StartDate:    start,
		EndDate:      start.AddDate(0, 1, 0),
		IsActive:     true,
		CreatedAt:    start,
	}
}

func toRow(t *testing.T, v any) gateway.Row {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return gateway.Row(b)
}

func settingRow(t *testing.T, key string, value any) gateway.Row {
	t.Helper()
	return toRow(t, models.AdminSetting{Key: key, Value: json.RawMessage(toRow(t, value))})
}

func settingQuery(key string) any {
	return mock.MatchedBy(func(q gateway.Query) bool {
		return q.Table == TableAdminSettings && q.Filter["key"] == key
	})
}

func eventsQuery() any {
	return mock.MatchedBy(func(q gateway.Query) bool {
		return q.Table == TablePresaleEvents &&
			q.Filter["is_active"] == true &&
			q.OrderBy == "created_at" && q.Desc && q.Limit == 1
	})
}

func usersQuery(userID string) any {
	return mock.MatchedBy(func(q gateway.Query) bool {
		return q.Table == TableUsers && q.Filter["id"] == userID
	})
}

func historyQuery(userID string) any {
	return mock.MatchedBy(func(q gateway.Query) bool {
		return q.Table == TableEnergyPurchases &&
			q.Filter["user_id"] == userID &&
			q.Filter["purchase_type"] == models.PurchaseTypePresale &&
			q.OrderBy == "purchased_at" && q.Desc
	})
}

// expectResolution настраивает ответы бэкенда для полного разрешения с заданным событием.
func expectResolution(t *testing.T, gw *GatewayMock, ev *models.PresaleEvent, override *models.SettingsOverride) {
	gw.On("QueryOne", mock.Anything, settingQuery(models.SettingPresaleEnabled)).
		Return(settingRow(t, models.SettingPresaleEnabled, models.EnabledFlag{Enabled: true}), true, nil)
	gw.On("QueryOne", mock.Anything, eventsQuery()).Return(toRow(t, ev), true, nil)
	if override == nil {
		gw.On("QueryOne", mock.Anything, settingQuery(models.SettingPresaleSettings)).Return(nil, false, nil)
	} else {
		gw.On("QueryOne", mock.Anything, settingQuery(models.SettingPresaleSettings)).
			Return(settingRow(t, models.SettingPresaleSettings, override), true, nil)
	}
}
