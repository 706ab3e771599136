// Package event реализует HTTP-обработчик чтения активного события пресейла.
package event

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/presale-service/internal/http/response"
	"github.com/magabrotheeeer/presale-service/internal/models"
	"github.com/magabrotheeeer/presale-service/internal/services/presale"
)

// Service источник разрешения активного события.
type Service interface {
	Resolve(ctx context.Context) presale.Resolution
}

// Handler отдаёт активное событие вместе с переопределением и эффективными условиями.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Response тело успешного ответа.
type Response struct {
	Enabled  bool                     `json:"enabled"`
	Visible  bool                     `json:"visible"`
	Event    *models.PresaleEvent     `json:"event,omitempty"`
	Override *models.SettingsOverride `json:"override,omitempty"`
	Terms    *models.Terms            `json:"terms,omitempty"`
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Активное событие пресейла
// @Description Возвращает активное событие, переопределение администратора и эффективные условия.
// @Description При недоступности бэкенда отдаётся событие по умолчанию.
// @Tags Presale
// @Produce json
// @Success 200 {object} response.Response{data=Response}
// @Router /presale/event [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.presale.event"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	res := h.service.Resolve(r.Context())
	out := Response{
		Enabled:  res.Enabled,
		Visible:  res.Visible(),
		Event:    res.Event,
		Override: res.Override,
	}
	if terms, ok := res.Terms(); ok {
		out.Terms = &terms
	}

	log.Debug("presale event resolved", slog.Bool("visible", out.Visible))
	render.JSON(w, r, response.OKWithData(out))
}
