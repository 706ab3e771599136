// Package enabled реализует HTTP-обработчик включения и выключения пресейла.
package enabled

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/presale-service/internal/gateway"
	"github.com/magabrotheeeer/presale-service/internal/http/response"
	"github.com/magabrotheeeer/presale-service/internal/lib/sl"
)

// Service переключает пресейл.
type Service interface {
	SetEnabled(ctx context.Context, enabled bool) error
}

// Request тело запроса.
type Request struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// Handler обработчик флага presale_enabled.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Включить или выключить пресейл
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Флаг"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 503 {object} response.ErrorResponse "Бэкенд не настроен"
// @Router /admin/presale/enabled [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.enabled"
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

	err := h.service.SetEnabled(r.Context(), *req.Enabled)
	switch {
	case errors.Is(err, gateway.ErrNotConfigured):
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("backend is not configured"))
		return
	case err != nil:
		log.Error("failed to switch presale", sl.Err(err))
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, response.Error("could not switch presale"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]bool{"enabled": *req.Enabled}))
}
