package surface

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/presale-service/internal/models"
)

// Hub открывает и закрывает поверхности сессий и держит их в реестре.
type Hub struct {
	backend  Backend
	sub      Subscriber
	opts     Options
	log      *slog.Logger
	registry *Registry
}

// NewHub создаёт хаб поверхностей.
func NewHub(backend Backend, sub Subscriber, registry *Registry, opts Options, log *slog.Logger) *Hub {
	return &Hub{
		backend:  backend,
		sub:      sub,
		opts:     opts,
		log:      log,
		registry: registry,
	}
}

// Open создаёт, регистрирует и монтирует поверхность для пользователя.
func (h *Hub) Open(ctx context.Context, user *models.User) *Surface {
	s := New(user, h.backend, h.sub, h.opts, h.log)
	h.registry.Add(s)
	s.Mount(ctx)
	return s
}

// Release убирает поверхность из реестра и закрывает её.
func (h *Hub) Release(s *Surface) {
	h.registry.Remove(s.ID())
	s.Close()
}
