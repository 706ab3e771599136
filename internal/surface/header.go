package surface

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/presale-service/internal/bus"
	"github.com/magabrotheeeer/presale-service/internal/services/presale"
)

// Resolver источник разрешения активного события.
type Resolver interface {
	Resolve(ctx context.Context) presale.Resolution
}

// Header общая для процесса поверхность шапки: показывать ли вход в пресейл.
type Header struct {
	resolver Resolver
	sub      Subscriber
	log      *slog.Logger
	timeout  time.Duration

	mu          sync.RWMutex
	visible     bool
	seq         uint64
	applied     uint64
	unsubscribe func()
}

// NewHeader создаёт поверхность шапки.
func NewHeader(resolver Resolver, sub Subscriber, log *slog.Logger) *Header {
	return &Header{
		resolver: resolver,
		sub:      sub,
		log:      log.With(slog.String("surface", "header")),
		timeout:  15 * time.Second,
	}
}

// Start подписывается на все темы пресейла и вычисляет видимость.
func (h *Header) Start(ctx context.Context) {
	unsubscribe := h.sub.SubscribeAll(bus.PresaleTopics(), func(bus.Event) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
			defer cancel()
			h.update(ctx)
		}()
	})
	h.mu.Lock()
	h.unsubscribe = unsubscribe
	h.mu.Unlock()

	h.update(ctx)
}

func (h *Header) update(ctx context.Context) {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	visible := h.resolver.Resolve(ctx).Visible()

	h.mu.Lock()
	defer h.mu.Unlock()
	if seq < h.applied {
		return
	}
	h.applied = seq
	if h.visible != visible {
		h.log.Info("presale visibility changed", slog.Bool("visible", visible))
	}
	h.visible = visible
}

// Visible пресейл включён и активное событие существует.
func (h *Header) Visible() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.visible
}

// Close отписывает шапку от шины.
func (h *Header) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
}
