// Package rest реализует gateway.Gateway поверх PostgREST-совместимого API
// хостинга данных: /rest/v1/{table} для строк и /rest/v1/rpc/{name} для процедур.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/presale-service/internal/gateway"
)

// Client клиент хостинга данных.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient создаёт клиент. timeout: верхняя граница любого запроса,
// ratePerSecond ограничивает частоту запросов (0 без ограничения).
func NewClient(baseURL, apiKey string, timeout time.Duration, ratePerSecond float64) *Client {
	limit := rate.Inf
	burst := 1
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
		burst = max(1, int(ratePerSecond))
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

type apiError struct {
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, prefer string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", gateway.ErrTransport, err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", gateway.ErrTransport, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", gateway.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return nil, fmt.Errorf("%w: status %d: %s", gateway.ErrTransport, resp.StatusCode, msg)
	}
	return data, nil
}

// filterValues переводит фильтр равенства в синтаксис PostgREST: col=eq.value.
func filterValues(filter gateway.Filter) url.Values {
	v := url.Values{}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, "eq."+formatValue(filter[k]))
	}
	return v
}

func formatValue(val any) string {
	switch x := val.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func (c *Client) selectRows(ctx context.Context, q gateway.Query) ([]gateway.Row, error) {
	params := filterValues(q.Filter)
	params.Set("select", "*")
	if q.OrderBy != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	data, err := c.do(ctx, http.MethodGet, "/rest/v1/"+url.PathEscape(q.Table), params, nil, "")
	if err != nil {
		return nil, err
	}
	var rows []gateway.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

// QueryOne возвращает первую строку выборки.
func (c *Client) QueryOne(ctx context.Context, q gateway.Query) (gateway.Row, bool, error) {
	const op = "rest.QueryOne"
	q.Limit = 1
	rows, err := c.selectRows(ctx, q)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// QueryMany возвращает все строки выборки.
func (c *Client) QueryMany(ctx context.Context, q gateway.Query) ([]gateway.Row, error) {
	const op = "rest.QueryMany"
	rows, err := c.selectRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rows, nil
}

// Insert вставляет строку и возвращает её представление.
func (c *Client) Insert(ctx context.Context, table string, values any) (gateway.Row, error) {
	const op = "rest.Insert"
	data, err := c.do(ctx, http.MethodPost, "/rest/v1/"+url.PathEscape(table), nil, values, "return=representation")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var rows []gateway.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%s: decode rows: %w", op, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: backend returned no rows", op)
	}
	return rows[0], nil
}

// Update обновляет строки, подходящие под фильтр.
func (c *Client) Update(ctx context.Context, table string, filter gateway.Filter, patch any) error {
	const op = "rest.Update"
	if len(filter) == 0 {
		return fmt.Errorf("%s: refusing to update without filter", op)
	}
	if _, err := c.do(ctx, http.MethodPatch, "/rest/v1/"+url.PathEscape(table), filterValues(filter), patch, "return=minimal"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CallProcedure вызывает серверную процедуру через /rpc.
func (c *Client) CallProcedure(ctx context.Context, name string, args any) (*gateway.ProcedureResult, error) {
	const op = "rest.CallProcedure"
	if args == nil {
		args = map[string]any{}
	}
	data, err := c.do(ctx, http.MethodPost, "/rest/v1/rpc/"+url.PathEscape(name), nil, args, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var res gateway.ProcedureResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%s: decode result: %w", op, err)
	}
	return &res, nil
}
