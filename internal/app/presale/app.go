// Package presale собирает сервис пресейла: бэкенд данных, шину настроек,
// поверхности сессий, HTTP API и gRPC health.
package presale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/presale-service/internal/bus"
	"github.com/magabrotheeeer/presale-service/internal/cache"
	"github.com/magabrotheeeer/presale-service/internal/config"
	"github.com/magabrotheeeer/presale-service/internal/gateway"
	"github.com/magabrotheeeer/presale-service/internal/gateway/rest"
	grpcserver "github.com/magabrotheeeer/presale-service/internal/grpc/server"
	"github.com/magabrotheeeer/presale-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/presale-service/internal/lib/jwt"
	"github.com/magabrotheeeer/presale-service/internal/lib/sl"
	"github.com/magabrotheeeer/presale-service/internal/metrics"
	"github.com/magabrotheeeer/presale-service/internal/migrations"
	presalesvc "github.com/magabrotheeeer/presale-service/internal/services/presale"
	"github.com/magabrotheeeer/presale-service/internal/storage/notify"
	"github.com/magabrotheeeer/presale-service/internal/storage/repository"
	"github.com/magabrotheeeer/presale-service/internal/surface"
)

const shutdownTimeout = 15 * time.Second

// App сервис пресейла со всеми зависимостями.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	server   *http.Server
	grpc     *grpcserver.Server
	bus      *bus.Bus
	bridge   *bus.Bridge
	listener *notify.Listener
	db       *repository.Storage
	cache    *cache.Cache
	registry *surface.Registry
	header   *surface.Header
}

// New создаёт приложение. Режим бэкенда выбирается по конфигу;
// недоступные Redis и RabbitMQ не мешают старту.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.presale.New"

	a := &App{cfg: cfg, logger: logger}
	mode := cfg.BackendMode()

	gw, err := a.initGateway(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := metrics.New()
	a.bus = bus.New(logger, bus.WithPublishHook(func(t bus.Topic) {
		m.Published(string(t))
	}))

	var resolutionCache presalesvc.Cache = cache.Noop{}
	if cfg.AddressRedis != "" {
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			logger.Warn("redis unavailable, resolution cache disabled", sl.Err(err))
		} else {
			a.cache = c
			resolutionCache = c
		}
	}

	// Резолвер подписывается первым, чтобы кеш сбрасывался раньше перечитывания поверхностями.
	resolver := presalesvc.NewResolver(gw, resolutionCache, m, logger, cfg.CacheTTL)
	resolver.InvalidateOn(a.bus)

	engine := presalesvc.NewEngine(gw, m, logger)
	accounts := presalesvc.NewAccounts(gw, cfg.HistoryLimit)
	service := presalesvc.NewService(resolver, engine, accounts, gw, a.bus, logger)

	if cfg.RabbitMQURL != "" {
		a.initBridge(ctx)
	}
	if mode == config.BackendPostgres {
		a.listener = notify.New(logger, cfg.StorageConnectionString, a.bus)
	}

	a.registry = surface.NewRegistry(m)
	hub := surface.NewHub(service, a.bus, a.registry, surface.Options{
		RefreshDelay:  cfg.RefreshDelay,
		CountdownTick: cfg.CountdownTick,
	}, logger)
	a.header = surface.NewHeader(service, a.bus, logger)
	a.header.Start(ctx)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:      logger,
		Service:     service,
		Header:      a.header,
		Hub:         hub,
		Dispatcher:  surface.NewDispatcher(a.registry, service),
		Tokens:      jwt.NewJWTMaker(cfg.JWTSecretKey, time.Hour),
		Limiter:     middlewarectx.NewLimiter(1, 3),
		Metrics:     m.Handler(),
		BackendMode: mode,
	})

	a.server = &http.Server{
		Addr:        cfg.AddressHTTP,
		Handler:     router,
		ReadTimeout: cfg.TimeoutHTTP,
		// WriteTimeout не задаётся: поток /presale/stream живёт всю сессию.
		IdleTimeout: cfg.IdleTimeout,
	}

	if cfg.GRPCAddress != "" {
		a.grpc = grpcserver.New(logger, mode)
	}

	logger.Info("presale app initialized", slog.String("backend_mode", mode))
	return a, nil
}

func (a *App) initGateway(ctx context.Context, mode string) (gateway.Gateway, error) {
	switch mode {
	case config.BackendREST:
		return rest.NewClient(a.cfg.Backend.URL, a.cfg.Backend.Key, a.cfg.RequestTimeout, a.cfg.RatePerSecond), nil
	case config.BackendPostgres:
		db, err := repository.New(a.cfg.StorageConnectionString)
		if err != nil {
			return nil, err
		}
		if err := migrations.Run(db.DB, a.cfg.MigrationsPath); err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := repository.CheckDatabaseReady(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.db = db
		return db, nil
	default:
		a.logger.Warn("backend is not configured, running offline with default presale data")
		return gateway.Offline{}, nil
	}
}

func (a *App) initBridge(ctx context.Context) {
	transport, err := bus.DialAMQP(a.logger, a.cfg.RabbitMQURL, a.cfg.RabbitMQMaxRetries, a.cfg.RabbitMQRetryDelay, a.cfg.Exchange)
	if err != nil {
		a.logger.Warn("rabbitmq unavailable, settings bus stays local", sl.Err(err))
		return
	}
	br := bus.NewBridge(a.logger, a.bus, transport)
	if err := br.Start(ctx); err != nil {
		a.logger.Warn("failed to start settings bridge", sl.Err(err))
		_ = br.Close()
		return
	}
	a.bridge = br
}

// Run запускает серверы и блокируется до отмены ctx или ошибки HTTP-сервера.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	if a.listener != nil {
		go func() {
			if err := a.listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("settings listener stopped", sl.Err(err))
			}
		}()
	}

	if a.grpc != nil {
		lis, err := net.Listen("tcp", a.cfg.GRPCAddress)
		if err != nil {
			return fmt.Errorf("app.presale.Run: %w", err)
		}
		go func() {
			a.logger.Info("gRPC server starting on", slog.String("address", a.cfg.GRPCAddress))
			if err := a.grpc.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		_ = a.server.Close()
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		// Поверхности закрываются первыми, иначе Shutdown ждёт открытые потоки.
		a.registry.CloseAll()
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	a.registry.CloseAll()
	a.header.Close()
	if a.grpc != nil {
		a.grpc.GracefulStop()
	}
	if a.bridge != nil {
		if err := a.bridge.Close(); err != nil {
			a.logger.Warn("failed to close settings bridge", sl.Err(err))
		}
	}
	a.bus.Close()
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", sl.Err(err))
		}
	}
}
