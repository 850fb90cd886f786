// Package plans отдаёт каталог тарифов и публикуемый ключ провайдера для формы оплаты.
package plans

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	catalog "github.com/magabrotheeeer/subscription-checkout/internal/plans"
)

// Lister возвращает планы в порядке отображения.
type Lister interface {
	All() []catalog.Plan
}

// Response каталог планов.
type Response struct {
	PublishableKey string         `json:"publishableKey"`
	Plans          []catalog.Plan `json:"plans"`
}

// Handler обработчик списка планов.
type Handler struct {
	log            *slog.Logger
	plans          Lister
	publishableKey string
}

// New создает новый Handler.
func New(log *slog.Logger, plans Lister, publishableKey string) *Handler {
	return &Handler{log: log, plans: plans, publishableKey: publishableKey}
}

// ServeHTTP godoc
// @Summary Список тарифов
// @Description Возвращает тарифы и публикуемый ключ провайдера.
// @Tags Checkout
// @Produce  json
// @Success 200 {object} Response "Тарифы"
// @Router /plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, Response{
		PublishableKey: h.publishableKey,
		Plans:          h.plans.All(),
	})
}
