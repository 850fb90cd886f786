// Package webhook принимает события платёжного провайдера.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-checkout/internal/paymentprovider"
)

// MaxBodyBytes предел размера тела события.
const MaxBodyBytes = 1 << 20

// SignatureHeader заголовок с подписью события.
const SignatureHeader = "Stripe-Signature"

// Service проверяет и применяет событие.
type Service interface {
	Reconcile(ctx context.Context, payload []byte, signature string) error
}

// Handler обработчик вебхука.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Вебхук платёжного провайдера
// @Description Проверяет подпись события и применяет его к подпискам. Повторная доставка безопасна.
// @Tags Stripe
// @Accept  json
// @Produce  json
// @Param Stripe-Signature header string true "Подпись события"
// @Success 200 {object} map[string]bool "Событие принято"
// @Failure 400 {string} string "Неверная подпись"
// @Failure 500 {string} string "Ошибка обработки, событие будет доставлено повторно"
// @Router /stripe/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		http.Error(w, "Webhook Error: unreadable body", http.StatusBadRequest)
		return
	}

	err = h.service.Reconcile(r.Context(), payload, r.Header.Get(SignatureHeader))
	switch {
	case errors.Is(err, paymentprovider.ErrInvalidSignature):
		http.Error(w, "Webhook Error: invalid signature", http.StatusBadRequest)
		return
	case err != nil:
		log.Error("failed to process webhook event", sl.Err(err))
		http.Error(w, "Webhook Error: processing failed", http.StatusInternalServerError)
		return
	}

	render.JSON(w, r, map[string]bool{"received": true})
}
