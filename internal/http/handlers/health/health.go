// Package health отвечает на проверки живости и готовности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-checkout/internal/lib/sl"
)

// Pinger зависимость, доступность которой проверяется.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler проверяет зависимости по имени.
type Handler struct {
	log   *slog.Logger
	deps  map[string]Pinger
	limit time.Duration
}

// New создает новый Handler.
func New(log *slog.Logger, deps map[string]Pinger) *Handler {
	return &Handler{log: log, deps: deps, limit: 2 * time.Second}
}

// ServeHTTP godoc
// @Summary Проверка готовности
// @Tags Health
// @Produce  json
// @Success 200 {object} map[string]string "Все зависимости доступны"
// @Failure 503 {object} map[string]string "Недоступна хотя бы одна зависимость"
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.limit)
	defer cancel()

	body := map[string]string{"status": "ok"}
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.log.Warn("dependency unavailable", slog.String("dependency", name), sl.Err(err))
			body[name] = "unavailable"
			body["status"] = "degraded"
			continue
		}
		body[name] = "ok"
	}
	if body["status"] != "ok" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, body)
}
