// Package stream реализует поток Server-Sent Events с представлениями поверхности пресейла.
//
// Каждое подключение получает собственную поверхность: первым кадром приходит
// event: mounted с её идентификатором, затем event: view при каждом изменении.
// Поверхность закрывается при любом завершении подключения.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/presale-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/presale-service/internal/lib/sl"
	"github.com/magabrotheeeer/presale-service/internal/models"
	"github.com/magabrotheeeer/presale-service/internal/surface"
)

// Surfaces открывает и освобождает поверхности сессий.
type Surfaces interface {
	Open(ctx context.Context, user *models.User) *surface.Surface
	Release(s *surface.Surface)
}

// Handler поток SSE.
type Handler struct {
	log       *slog.Logger
	surfaces  Surfaces
	keepAlive time.Duration
}

// New создает новый Handler.
func New(log *slog.Logger, surfaces Surfaces) *Handler {
	return &Handler{
		log:       log,
		surfaces:  surfaces,
		keepAlive: 15 * time.Second,
	}
}

// ServeHTTP godoc
// @Summary Поток представлений пресейла
// @Description Server-Sent Events: mounted с surface_id, затем view при каждом изменении.
// @Tags Presale
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Failure 500 {object} response.ErrorResponse "Streaming unsupported"
// @Router /presale/stream [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.presale.stream"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	s := h.surfaces.Open(ctx, middlewarectx.UserFromContext(ctx))
	defer h.surfaces.Release(s)
	log = log.With(slog.String("surface_id", s.ID()))

	send := func(event string, v any) bool {
		payload, err := json.Marshal(v)
		if err != nil {
			log.Error("failed to encode stream frame", sl.Err(err))
			return false
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send("mounted", map[string]string{"surface_id": s.ID()}) {
		return
	}
	log.Info("stream opened")

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	updates := s.Updates()
	for {
		select {
		case <-ctx.Done():
			log.Info("stream closed by client")
			return
		case v, ok := <-updates:
			if !ok {
				return
			}
			if !send("view", v) {
				return
			}
		case <-ticker.C:
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
