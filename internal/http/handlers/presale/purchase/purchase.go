// Package purchase реализует HTTP-обработчик покупки BIO за USDT.
//
// Покупка направляется в поверхность вызывающего, если передан её surface_id,
// иначе выполняется разовой покупкой со свежими данными.
package purchase

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/presale-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/presale-service/internal/http/response"
	"github.com/magabrotheeeer/presale-service/internal/lib/sl"
	"github.com/magabrotheeeer/presale-service/internal/models"
	"github.com/magabrotheeeer/presale-service/internal/services/presale"
)

// Purchaser проводит покупку.
type Purchaser interface {
	Purchase(ctx context.Context, user *models.User, surfaceID, rawAmount string) presale.Outcome
}

// Amount количество BIO; принимается строкой или числом JSON.
type Amount string

// UnmarshalJSON принимает "100.5" и 100.5.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// Request тело запроса покупки.
type Request struct {
	Amount    Amount `json:"amount" swaggertype:"string" example:"100000"`
	SurfaceID string `json:"surface_id,omitempty" validate:"omitempty,uuid"`
}

// Handler обработчик покупки.
type Handler struct {
	log       *slog.Logger
	purchaser Purchaser
	validate  *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, purchaser Purchaser) *Handler {
	return &Handler{
		log:       log,
		purchaser: purchaser,
		validate:  validator.New(),
	}
}

// StatusCode HTTP-статус для итога покупки.
func StatusCode(s presale.Status) int {
	switch s {
	case presale.StatusCommitted:
		return http.StatusOK
	case presale.StatusNotAuthenticated:
		return http.StatusUnauthorized
	case presale.StatusInvalidAmount:
		return http.StatusUnprocessableEntity
	case presale.StatusInsufficientFunds, presale.StatusInsufficientSupply, presale.StatusUnavailable:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// ServeHTTP godoc
// @Summary Купить BIO
// @Description Проверяет количество, баланс и остаток события и вызывает атомарную процедуру покупки.
// @Tags Presale
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Количество и необязательный surface_id"
// @Success 200 {object} response.Response{data=presale.Outcome} "Покупка проведена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.Response{data=presale.Outcome} "Пользователь не авторизован"
// @Failure 409 {object} response.Response{data=presale.Outcome} "Недостаточно средств или токенов"
// @Failure 422 {object} response.Response{data=presale.Outcome} "Некорректное количество"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Failure 502 {object} response.Response{data=presale.Outcome} "Бэкенд отклонил покупку или недоступен"
// @Router /presale/purchase [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.presale.purchase"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.InvalidRequest(err))
		return
	}

	out := h.purchaser.Purchase(r.Context(), middlewarectx.UserFromContext(r.Context()), req.SurfaceID, string(req.Amount))
	log.Info("purchase handled", slog.String("status", string(out.Status)))

	render.Status(r, StatusCode(out.Status))
	if out.Committed() {
		render.JSON(w, r, response.OKWithData(out))
		return
	}
	render.JSON(w, r, response.ErrorWithData(out.Message, out))
}
