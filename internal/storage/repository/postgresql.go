// Package repository реализует gateway.Gateway поверх PostgreSQL: строки таблиц
// отдаются как JSON-объекты, процедура покупки выполняется в одной транзакции.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/presale-service/internal/gateway"
)

// ProcedurePresalePurchase имя атомарной процедуры покупки.
const ProcedurePresalePurchase = "process_presale_purchase"

type procedureFunc func(ctx context.Context, args json.RawMessage) (*gateway.ProcedureResult, error)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB

	procedures map[string]procedureFunc
}

// New создаёт подключение к PostgreSQL и регистрирует процедуры, выполняемые на стороне сервиса.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := &Storage{DB: db}
	s.procedures = map[string]procedureFunc{
		ProcedurePresalePurchase: s.processPresalePurchase,
	}
	return s, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// CheckDatabaseReady проверяет, что миграции применены.
func CheckDatabaseReady(ctx context.Context, storage *Storage) error {
	const op = "storage.CheckDatabaseReady"

	var exists bool
	err := storage.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'presale_events'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: required table presale_events missing", op)
	}
	return nil
}

var _ gateway.Gateway = (*Storage)(nil)
