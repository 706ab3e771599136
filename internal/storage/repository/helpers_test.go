package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/presale-service/internal/migrations"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает пользователя с заданным балансом USDT
func (f *TestDataFactory) CreateUser(t *testing.T, usdt string) string {
	var id string
	err := f.storage.DB.QueryRow(`INSERT INTO users (usdt_balance) VALUES ($1) RETURNING id`, usdt).Scan(&id)
	require.NoError(t, err)
	return id
}

// ReplaceActiveEvent деактивирует все события и создаёт новое активное
func (f *TestDataFactory) ReplaceActiveEvent(t *testing.T, price, total, sold string) string {
	_, err := f.storage.DB.Exec(`UPDATE presale_events SET is_active = FALSE`)
	require.NoError(t, err)

	var id string
	err = f.storage.DB.QueryRow(`
		INSERT INTO presale_events (event_number, price_per_unit, total_supply, sold, start_date, end_date, is_active)
		VALUES (2, $1, $2, $3, now(), now() + INTERVAL '7 days', TRUE)
		RETURNING id`, price, total, sold).Scan(&id)
	require.NoError(t, err)
	return id
}

// DeactivateEvents выключает все события
func (f *TestDataFactory) DeactivateEvents(t *testing.T) {
	_, err := f.storage.DB.Exec(`UPDATE presale_events SET is_active = FALSE`)
	require.NoError(t, err)
}

// UserBalance возвращает текущий баланс USDT пользователя
func (f *TestDataFactory) UserBalance(t *testing.T, userID string) decimal.Decimal {
	var balance decimal.Decimal
	err := f.storage.DB.QueryRow(`SELECT usdt_balance FROM users WHERE id = $1`, userID).Scan(&balance)
	require.NoError(t, err)
	return balance
}

// EventSold возвращает sold события
func (f *TestDataFactory) EventSold(t *testing.T, eventID string) decimal.Decimal {
	var sold decimal.Decimal
	err := f.storage.DB.QueryRow(`SELECT sold FROM presale_events WHERE id = $1`, eventID).Scan(&sold)
	require.NoError(t, err)
	return sold
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	projectRoot, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, filepath.Join(projectRoot, "migrations")))

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}
