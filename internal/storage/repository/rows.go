package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/magabrotheeeer/presale-service/internal/gateway"
)

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// whereClause строит условия равенства; плейсхолдеры нумеруются начиная с offset+1.
func whereClause(table string, filter gateway.Filter, offset int) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter))
	for i, col := range sortedKeys(filter) {
		conds = append(conds, fmt.Sprintf("%s.%s = $%d", table, ident(col), offset+i+1))
		args = append(args, filter[col])
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func selectQuery(q gateway.Query) (string, []any) {
	table := ident(q.Table)
	where, args := whereClause(table, q.Filter, 0)

	var b strings.Builder
	b.WriteString("SELECT row_to_json(t)::text FROM (SELECT * FROM ")
	b.WriteString(table)
	b.WriteString(where)
	if q.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(ident(q.OrderBy))
		if q.Desc {
			b.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.Limit))
	}
	b.WriteString(") t")
	return b.String(), args
}

func (s *Storage) selectRows(ctx context.Context, q gateway.Query) ([]gateway.Row, error) {
	query, args := selectQuery(q)
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []gateway.Row
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		out = append(out, gateway.Row(raw))
	}
	return out, rows.Err()
}

// QueryOne возвращает первую строку выборки.
func (s *Storage) QueryOne(ctx context.Context, q gateway.Query) (gateway.Row, bool, error) {
	const op = "storage.QueryOne"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	q.Limit = 1
	rows, err := s.selectRows(ctx, q)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// QueryMany возвращает все строки выборки.
func (s *Storage) QueryMany(ctx context.Context, q gateway.Query) ([]gateway.Row, error) {
	const op = "storage.QueryMany"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.selectRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rows, nil
}

// columnsOf возвращает JSON-представление значения и отсортированный список его ключей.
func columnsOf(values any) ([]byte, []string, error) {
	payload, err := json.Marshal(values)
	if err != nil {
		return nil, nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, nil, err
	}
	if len(fields) == 0 {
		return nil, nil, errors.New("no columns to write")
	}
	return payload, sortedKeys(fields), nil
}

// Insert вставляет строку; отсутствующие в values колонки получают значения по умолчанию.
func (s *Storage) Insert(ctx context.Context, table string, values any) (gateway.Row, error) {
	const op = "storage.Insert"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	payload, cols, err := columnsOf(values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tbl := ident(table)
	quoted := make([]string, len(cols))
	fromRecord := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ident(c)
		fromRecord[i] = "r." + ident(c)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM json_populate_record(NULL::%s, $1::json) r RETURNING row_to_json(%s.*)::text",
		tbl, strings.Join(quoted, ", "), strings.Join(fromRecord, ", "), tbl, tbl,
	)

	var raw string
	if err := s.DB.QueryRowContext(ctx, query, string(payload)).Scan(&raw); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return gateway.Row(raw), nil
}

// Update применяет patch ко всем строкам, подходящим под фильтр.
func (s *Storage) Update(ctx context.Context, table string, filter gateway.Filter, patch any) error {
	const op = "storage.Update"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if len(filter) == 0 {
		return fmt.Errorf("%s: refusing to update without filter", op)
	}
	payload, cols, err := columnsOf(patch)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tbl := ident(table)
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = r.%s", ident(c), ident(c))
	}
	where, args := whereClause(tbl, filter, 1)

	query := fmt.Sprintf(
		"UPDATE %s SET %s FROM json_populate_record(NULL::%s, $1::json) r%s",
		tbl, strings.Join(sets, ", "), tbl, where,
	)
	if _, err := s.DB.ExecContext(ctx, query, append([]any{string(payload)}, args...)...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CallProcedure выполняет процедуру, зарегистрированную в сервисе, либо SQL-функцию
// с тем же именем, возвращающую JSON.
func (s *Storage) CallProcedure(ctx context.Context, name string, args any) (*gateway.ProcedureResult, error) {
	const op = "storage.CallProcedure"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if fn, ok := s.procedures[name]; ok {
		res, err := fn(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, name, err)
		}
		return res, nil
	}

	res, err := s.callFunction(ctx, name, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, name, err)
	}
	return res, nil
}

func (s *Storage) callFunction(ctx context.Context, name string, payload []byte) (*gateway.ProcedureResult, error) {
	fields := map[string]any{}
	if string(payload) != "null" {
		dec := json.NewDecoder(strings.NewReader(string(payload)))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, err
		}
	}

	named := make([]string, 0, len(fields))
	params := make([]any, 0, len(fields))
	for i, k := range sortedKeys(fields) {
		named = append(named, fmt.Sprintf("%s => $%d", ident(k), i+1))
		params = append(params, functionArg(fields[k]))
	}

	query := fmt.Sprintf("SELECT to_json(%s(%s))::text", ident(name), strings.Join(named, ", "))
	var raw sql.NullString
	if err := s.DB.QueryRowContext(ctx, query, params...).Scan(&raw); err != nil {
		return nil, err
	}
	var res gateway.ProcedureResult
	if raw.Valid {
		if err := json.Unmarshal([]byte(raw.String), &res); err != nil {
			return nil, err
		}
	}
	return &res, nil
}

func functionArg(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
