// Package gateway описывает универсальный клиент к хостингу данных: чтение строк
// с фильтрами, сортировкой и лимитом, вставку, обновление и вызов серверных
// атомарных процедур. Бизнес-логики здесь нет.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured бэкенд не настроен (нет URL, ключа или строки подключения).
	ErrNotConfigured = errors.New("backend is not configured")
	// ErrNotFound запрошенная строка отсутствует.
	ErrNotFound = errors.New("row not found")
	// ErrTransport сетевая ошибка, таймаут или неуспешный ответ бэкенда.
	ErrTransport = errors.New("backend transport failure")
)

// Filter условия равенства по колонкам.
type Filter map[string]any

// Query параметры выборки строк.
type Query struct {
	Table   string
	Filter  Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Row одна строка в виде JSON-объекта.
type Row = json.RawMessage

// ProcedureResult структурированный ответ серверной процедуры.
type ProcedureResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"-"`
}

// UnmarshalJSON сохраняет все поля ответа, кроме success и message, в Data.
func (r *ProcedureResult) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Data = make(map[string]any, len(raw))
	for k, v := range raw {
		switch k {
		case "success":
			ok, _ := v.(bool)
			r.Success = ok
		case "message":
			msg, _ := v.(string)
			r.Message = msg
		default:
			r.Data[k] = v
		}
	}
	return nil
}

// Gateway контракт хостинга данных, которым пользуются все остальные компоненты.
type Gateway interface {
	// QueryOne возвращает первую подходящую строку; found=false, если строк нет.
	QueryOne(ctx context.Context, q Query) (row Row, found bool, err error)
	// QueryMany возвращает все подходящие строки.
	QueryMany(ctx context.Context, q Query) ([]Row, error)
	// Insert вставляет строку и возвращает её в сохранённом виде.
	Insert(ctx context.Context, table string, values any) (Row, error)
	// Update применяет patch ко всем строкам, подходящим под filter.
	Update(ctx context.Context, table string, filter Filter, patch any) error
	// CallProcedure вызывает серверную процедуру с именованными аргументами.
	CallProcedure(ctx context.Context, name string, args any) (*ProcedureResult, error)
}

// Decode разбирает строку в структуру.
func Decode(row Row, out any) error {
	const op = "gateway.Decode"
	if err := json.Unmarshal(row, out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DecodeAll разбирает набор строк в срез структур.
func DecodeAll[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var item T
		if err := Decode(row, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Offline реализация для режима без бэкенда: каждый вызов возвращает ErrNotConfigured.
type Offline struct{}

// QueryOne всегда ErrNotConfigured.
func (Offline) QueryOne(context.Context, Query) (Row, bool, error) {
	return nil, false, ErrNotConfigured
}

// QueryMany всегда ErrNotConfigured.
func (Offline) QueryMany(context.Context, Query) ([]Row, error) {
	return nil, ErrNotConfigured
}

// Insert всегда ErrNotConfigured.
func (Offline) Insert(context.Context, string, any) (Row, error) {
	return nil, ErrNotConfigured
}

// Update всегда ErrNotConfigured.
func (Offline) Update(context.Context, string, Filter, any) error {
	return ErrNotConfigured
}

// CallProcedure всегда ErrNotConfigured.
func (Offline) CallProcedure(context.Context, string, any) (*ProcedureResult, error) {
	return nil, ErrNotConfigured
}
