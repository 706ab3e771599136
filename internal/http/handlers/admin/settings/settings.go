// Package settings реализует HTTP-обработчик записи оперативного переопределения
// условий пресейла. Переопределение рассылается всем открытым поверхностям.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/presale-service/internal/gateway"
	"github.com/magabrotheeeer/presale-service/internal/http/response"
	"github.com/magabrotheeeer/presale-service/internal/lib/sl"
	"github.com/magabrotheeeer/presale-service/internal/models"
	"github.com/magabrotheeeer/presale-service/internal/services/presale"
)

// Service сохраняет переопределение.
type Service interface {
	UpdateSettings(ctx context.Context, override models.SettingsOverride) error
}

// Handler обработчик записи переопределения.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Переопределить условия пресейла
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.SettingsOverride true "Цена, объём и продано"
// @Success 200 {object} response.Response{data=models.SettingsOverride}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Нет прав администратора"
// @Failure 422 {object} response.ErrorResponse "Недопустимые значения"
// @Failure 503 {object} response.ErrorResponse "Бэкенд не настроен"
// @Router /admin/presale/settings [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.settings"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var override models.SettingsOverride
	if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if override.IsEmpty() {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("at least one of price_per_unit, total_supply, sold is required"))
		return
	}

	err := h.service.UpdateSettings(r.Context(), override)
	switch {
	case errors.Is(err, presale.ErrInvalidSettings):
		log.Info("invalid settings rejected", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(err.Error()))
		return
	case errors.Is(err, gateway.ErrNotConfigured):
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("backend is not configured"))
		return
	case err != nil:
		log.Error("failed to update settings", sl.Err(err))
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, response.Error("could not update presale settings"))
		return
	}

	log.Info("presale settings updated")
	render.JSON(w, r, response.OKWithData(override))
}
