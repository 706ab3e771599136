package surface

import (
	"context"
	"sync"

	"github.com/magabrotheeeer/presale-service/internal/models"
	"github.com/magabrotheeeer/presale-service/internal/services/presale"
)

// Lifecycle получает сведения о числе открытых поверхностей.
type Lifecycle interface {
	SurfaceMounted()
	SurfaceClosed()
}

// Registry открытые поверхности по идентификатору.
type Registry struct {
	mu        sync.RWMutex
	surfaces  map[string]*Surface
	lifecycle Lifecycle
}

// NewRegistry создаёт реестр; lifecycle может быть nil.
func NewRegistry(lifecycle Lifecycle) *Registry {
	return &Registry{surfaces: make(map[string]*Surface), lifecycle: lifecycle}
}

// Add регистрирует поверхность.
func (r *Registry) Add(s *Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.surfaces[s.ID()]; ok {
		return
	}
	r.surfaces[s.ID()] = s
	if r.lifecycle != nil {
		r.lifecycle.SurfaceMounted()
	}
}

// Get возвращает поверхность по идентификатору.
func (r *Registry) Get(id string) (*Surface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.surfaces[id]
	return s, ok
}

// Remove удаляет поверхность из реестра.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.surfaces[id]; !ok {
		return
	}
	delete(r.surfaces, id)
	if r.lifecycle != nil {
		r.lifecycle.SurfaceClosed()
	}
}

// Len число открытых поверхностей.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.surfaces)
}

// CloseAll закрывает все поверхности, например при остановке сервиса.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	surfaces := r.surfaces
	r.surfaces = make(map[string]*Surface)
	r.mu.Unlock()

	for _, s := range surfaces {
		s.Close()
		if r.lifecycle != nil {
			r.lifecycle.SurfaceClosed()
		}
	}
}

// OneShot разовая покупка без открытой поверхности.
type OneShot interface {
	Purchase(ctx context.Context, user *models.User, rawAmount string) presale.Outcome
}

// Dispatcher направляет покупку в поверхность вызывающего, а без неё в разовую покупку.
type Dispatcher struct {
	registry *Registry
	oneShot  OneShot
}

// NewDispatcher создаёт диспетчер покупок.
func NewDispatcher(registry *Registry, oneShot OneShot) *Dispatcher {
	return &Dispatcher{registry: registry, oneShot: oneShot}
}

// Purchase проводит покупку. Чужая или неизвестная поверхность игнорируется.
func (d *Dispatcher) Purchase(ctx context.Context, user *models.User, surfaceID, rawAmount string) presale.Outcome {
	if surfaceID != "" {
		if s, ok := d.registry.Get(surfaceID); ok && s.Owner(user) {
			return s.Purchase(ctx, rawAmount)
		}
	}
	return d.oneShot.Purchase(ctx, user, rawAmount)
}
