package presale

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/presale-service/internal/http/handlers/admin/enabled"
	"github.com/magabrotheeeer/presale-service/internal/http/handlers/admin/settings"
	"github.com/magabrotheeeer/presale-service/internal/http/handlers/health"
	"github.com/magabrotheeeer/presale-service/internal/http/handlers/presale/event"
	"github.com/magabrotheeeer/presale-service/internal/http/handlers/presale/history"
	"github.com/magabrotheeeer/presale-service/internal/http/handlers/presale/purchase"
	"github.com/magabrotheeeer/presale-service/internal/http/handlers/presale/stream"
	"github.com/magabrotheeeer/presale-service/internal/http/handlers/presale/visibility"
	"github.com/magabrotheeeer/presale-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/presale-service/internal/models"
	presalesvc "github.com/magabrotheeeer/presale-service/internal/services/presale"
	"github.com/magabrotheeeer/presale-service/internal/surface"
)

// Deps зависимости HTTP-маршрутов.
type Deps struct {
	Logger      *slog.Logger
	Service     *presalesvc.Service
	Header      *surface.Header
	Hub         *surface.Hub
	Dispatcher  *surface.Dispatcher
	Tokens      middlewarectx.TokenParser
	Limiter     *middlewarectx.Limiter
	Metrics     http.Handler
	BackendMode string
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/presale/event", event.New(d.Logger, d.Service).ServeHTTP)
		r.Get("/presale/visibility", visibility.New(d.Header).ServeHTTP)
		r.Get("/health", health.New(d.BackendMode).ServeHTTP)

		// Аноним допустим: поверхность и покупка сами сообщают о необходимости входа
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.OptionalJWTMiddleware(d.Tokens, d.Logger))
			r.Get("/presale/stream", stream.New(d.Logger, d.Hub).ServeHTTP)
			r.With(middlewarectx.RateLimitMiddleware(d.Limiter, d.Logger)).
				Post("/presale/purchase", purchase.New(d.Logger, d.Dispatcher).ServeHTTP)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, d.Logger))
			r.Get("/presale/history", history.New(d.Logger, d.Service).ServeHTTP)

			r.Route("/admin/presale", func(r chi.Router) {
				r.Use(middlewarectx.RequireRole(models.RoleAdmin, d.Logger))
				r.Put("/settings", settings.New(d.Logger, d.Service).ServeHTTP)
				r.Put("/enabled", enabled.New(d.Logger, d.Service).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", d.Metrics)
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
