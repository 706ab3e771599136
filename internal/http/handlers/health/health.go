// Package health отдаёт состояние сервиса и режим работы с бэкендом.
package health

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/presale-service/internal/http/response"
)

// Handler обработчик /health.
type Handler struct {
	backendMode string
}

// New создает новый Handler.
func New(backendMode string) *Handler {
	return &Handler{backendMode: backendMode}
}

// ServeHTTP godoc
// @Summary Состояние сервиса
// @Tags Health
// @Produce json
// @Success 200 {object} response.Response
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.OKWithData(map[string]any{
		"status":       "ok",
		"backend_mode": h.backendMode,
	}))
}
