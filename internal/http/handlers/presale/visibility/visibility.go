// Package visibility отдаёт признак показа входа в пресейл в шапке.
package visibility

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/presale-service/internal/http/response"
)

// Header общая поверхность шапки.
type Header interface {
	Visible() bool
}

// Handler отдаёт {"visible": bool}.
type Handler struct {
	header Header
}

// New создает новый Handler.
func New(header Header) *Handler {
	return &Handler{header: header}
}

// ServeHTTP godoc
// @Summary Видимость пресейла
// @Tags Presale
// @Produce json
// @Success 200 {object} response.Response
// @Router /presale/visibility [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.OKWithData(map[string]bool{
		"visible": h.header.Visible(),
	}))
}
