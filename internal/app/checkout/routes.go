// Package checkout собирает HTTP-приложение оформления подписок.
package checkout

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/subscription-checkout/internal/http/middlewarectx"
)

// Handlers обработчики маршрутов API.
type Handlers struct {
	Register http.Handler
	Login    http.Handler
	Plans    http.Handler
	Webhook  http.Handler
	Checkout http.Handler
	Profile  http.Handler
	Health   http.Handler
	Metrics  http.Handler
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, h Handlers, parser middlewarectx.TokenParser, limiter *middlewarectx.RateLimiter) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/signup", h.Register.ServeHTTP)
		r.Post("/auth/login", h.Login.ServeHTTP)
		r.Get("/plans", h.Plans.ServeHTTP)

		// Вебхук провайдера проверяется подписью, а не токеном
		r.Post("/stripe/webhook", h.Webhook.ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(parser, logger))
			r.Use(limiter.Middleware)
			r.Post("/checkout", h.Checkout.ServeHTTP)
			r.Get("/me", h.Profile.ServeHTTP)
		})
	})

	r.Get("/health", h.Health.ServeHTTP)
	r.Handle("/metrics", h.Metrics)
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
