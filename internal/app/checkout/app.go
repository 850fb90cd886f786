package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-checkout/internal/cache"
	"github.com/magabrotheeeer/subscription-checkout/internal/config"
	"github.com/magabrotheeeer/subscription-checkout/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/subscription-checkout/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/subscription-checkout/internal/http/handlers/checkout/session"
	"github.com/magabrotheeeer/subscription-checkout/internal/http/handlers/checkout/webhook"
	"github.com/magabrotheeeer/subscription-checkout/internal/http/handlers/dashboard"
	"github.com/magabrotheeeer/subscription-checkout/internal/http/handlers/health"
	planshandler "github.com/magabrotheeeer/subscription-checkout/internal/http/handlers/plans"
	"github.com/magabrotheeeer/subscription-checkout/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-checkout/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-checkout/internal/metrics"
	"github.com/magabrotheeeer/subscription-checkout/internal/migrations"
	"github.com/magabrotheeeer/subscription-checkout/internal/paymentprovider"
	"github.com/magabrotheeeer/subscription-checkout/internal/plans"
	"github.com/magabrotheeeer/subscription-checkout/internal/rabbitmq"
	"github.com/magabrotheeeer/subscription-checkout/internal/services/account"
	authservice "github.com/magabrotheeeer/subscription-checkout/internal/services/auth"
	checkoutservice "github.com/magabrotheeeer/subscription-checkout/internal/services/checkout"
	"github.com/magabrotheeeer/subscription-checkout/internal/services/reconciler"
	"github.com/magabrotheeeer/subscription-checkout/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// App HTTP-сервер оформления подписок и его ресурсы.
type App struct {
	server    *http.Server
	logger    *slog.Logger
	db        *storage.Storage
	cache     *cache.Cache
	amqpConn  *amqp.Connection
	publisher *rabbitmq.Publisher
}

// components внешние ресурсы, из которых собирается API.
type components struct {
	store     *storage.Storage
	cache     *cache.Cache
	publisher reconciler.Publisher
	registry  *prometheus.Registry
}

// newRouter собирает сервисы и обработчики поверх готовых ресурсов.
func newRouter(cfg *config.Config, logger *slog.Logger, c components) (http.Handler, error) {
	catalog, err := plans.New(cfg.PriceIDs())
	if err != nil {
		return nil, err
	}
	recorder := metrics.New(c.registry)
	provider := paymentprovider.New(cfg.Stripe, logger)
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	authService := authservice.NewAuthService(c.store, jwtMaker)
	checkoutService := checkoutservice.NewService(catalog, c.store, c.store, provider, c.cache, logger)
	accountService := account.NewService(c.store, c.cache, logger)
	reconcilerService := reconciler.NewService(reconciler.Deps{
		Verifier:  provider,
		Store:     c.store,
		Provider:  provider,
		Cache:     c.cache,
		Publisher: c.publisher,
		Catalog:   catalog,
		Metrics:   recorder,
	}, logger)

	handlers := Handlers{
		Register: register.New(logger, authService),
		Login:    login.New(logger, authService),
		Plans:    planshandler.New(logger, catalog, cfg.PublishableKey),
		Webhook:  webhook.New(logger, reconcilerService),
		Checkout: session.New(logger, checkoutService, recorder),
		Profile:  dashboard.New(logger, accountService),
		Health: health.New(logger, map[string]health.Pinger{
			"postgres": c.store,
			"redis":    c.cache,
		}),
		Metrics: promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}),
	}

	router := chi.NewRouter()
	limiter := middlewarectx.NewRateLimiter(logger, cfg.RateLimit, cfg.RateBurst)
	RegisterRoutes(router, logger, handlers, jwtMaker, limiter)
	return router, nil
}

// New подключает хранилища и брокер, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.checkout.New"

	db, err := storage.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	app := &App{logger: logger, db: db}

	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app.amqpConn, err = rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(app.amqpConn, cfg.Exchange, rabbitmq.GetSubscriptionQueues())
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	app.publisher = rabbitmq.NewPublisher(ch, cfg.Exchange)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router, err := newRouter(cfg, logger, components{
		store:     db,
		cache:     app.cache,
		publisher: app.publisher,
		registry:  reg,
	})
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run запускает сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
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
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close publisher", slog.Any("err", err))
		}
	}
	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq connection", slog.Any("err", err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close redis", slog.Any("err", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", slog.Any("err", err))
		}
	}
}
