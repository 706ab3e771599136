// Package history реализует HTTP-обработчик истории покупок пресейла пользователя.
package history

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/presale-service/internal/gateway"
	"github.com/magabrotheeeer/presale-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/presale-service/internal/http/response"
	"github.com/magabrotheeeer/presale-service/internal/lib/sl"
	"github.com/magabrotheeeer/presale-service/internal/models"
)

// Service читает историю покупок.
type Service interface {
	History(ctx context.Context, user *models.User) ([]models.PurchaseRecord, error)
}

// Handler обработчик истории.
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
// @Summary История покупок пресейла
// @Description Покупки пресейла текущего пользователя, новые первыми.
// @Tags Presale
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.PurchaseRecord}
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 502 {object} response.ErrorResponse "Бэкенд недоступен"
// @Router /presale/history [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.presale.history"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user := middlewarectx.UserFromContext(r.Context())
	if user == nil {
		log.Error("user not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	records, err := h.service.History(r.Context(), user)
	switch {
	case errors.Is(err, gateway.ErrNotConfigured):
		records = []models.PurchaseRecord{}
	case err != nil:
		log.Error("failed to load purchase history", sl.Err(err))
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, response.Error("could not load purchase history"))
		return
	}
	if records == nil {
		records = []models.PurchaseRecord{}
	}

	render.JSON(w, r, response.OKWithData(records))
}
