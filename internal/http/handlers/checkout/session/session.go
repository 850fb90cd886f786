// Package session реализует HTTP-обработчик оформления подписки: по плану и
// пользователю создаёт подписку у провайдера и возвращает секрет подтверждения.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-checkout/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-checkout/internal/http/response"
	"github.com/magabrotheeeer/subscription-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-checkout/internal/metrics"
	"github.com/magabrotheeeer/subscription-checkout/internal/models"
	"github.com/magabrotheeeer/subscription-checkout/internal/plans"
	"github.com/magabrotheeeer/subscription-checkout/internal/services/checkout"
)

// Request тело запроса на оформление.
type Request struct {
	Plan      string `json:"plan" validate:"required,oneof=monthly annually" example:"monthly"`
	UserEmail string `json:"userEmail" validate:"required,email" example:"jenny@example.com"`
	UserID    string `json:"userId" validate:"required" example:"6f1c2b1e-1d7a-4a4e-9d3b-0c7a1c2b3d4e"`
}

// Service описывает создание сессии оформления.
type Service interface {
	CreateSession(ctx context.Context, req checkout.Request) (*models.CheckoutSession, error)
}

// Handler обрабатывает запросы оформления.
type Handler struct {
	log      *slog.Logger
	service  Service
	metrics  *metrics.Recorder
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, m *metrics.Recorder) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		metrics:  m,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Оформить подписку
// @Description Создаёт подписку с отложенной оплатой и возвращает секрет подтверждения первого платежа.
// @Tags Checkout
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "План и пользователь"
// @Success 200 {object} models.CheckoutSession "Сессия оформления"
// @Failure 400 {object} response.ErrorResponse "Неизвестный план или ошибка провайдера"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "userId или userEmail не совпадают с токеном"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Failure 500 {object} response.ErrorResponse "Ошибка сохранения"
// @Router /checkout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.session"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		h.fail(w, r, http.StatusBadRequest, metrics.ResultRejected, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		h.fail(w, r, http.StatusUnprocessableEntity, metrics.ResultRejected,
			response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userUID, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user uid not found in context")
		h.fail(w, r, http.StatusUnauthorized, metrics.ResultRejected, response.Error("unauthorized"))
		return
	}
	if userUID != req.UserID {
		log.Warn("user id does not match token", slog.String("user_uid", userUID))
		h.fail(w, r, http.StatusForbidden, metrics.ResultRejected, response.Error("forbidden"))
		return
	}
	// почта уходит провайдеру в карточку клиента, поэтому берётся из токена
	email, ok := middlewarectx.EmailFromContext(r.Context())
	if !ok || !strings.EqualFold(email, strings.TrimSpace(req.UserEmail)) {
		log.Warn("user email does not match token", slog.String("user_uid", userUID))
		h.fail(w, r, http.StatusForbidden, metrics.ResultRejected, response.Error("forbidden"))
		return
	}

	session, err := h.service.CreateSession(r.Context(), checkout.Request{
		Plan:      req.Plan,
		UserEmail: email,
		UserID:    req.UserID,
	})
	switch {
	case errors.Is(err, plans.ErrUnknownPlan):
		h.fail(w, r, http.StatusBadRequest, metrics.ResultRejected, response.Error(plans.ErrUnknownPlan.Error()))
		return
	case errors.Is(err, checkout.ErrMissingConfirmationSecret):
		h.fail(w, r, http.StatusBadRequest, metrics.ResultError, response.Error(checkout.ErrMissingConfirmationSecret.Error()))
		return
	case errors.Is(err, checkout.ErrUpstream):
		h.fail(w, r, http.StatusBadRequest, metrics.ResultError, response.Error(checkout.ErrUpstream.Error()))
		return
	case err != nil:
		log.Error("failed to create checkout session", sl.Err(err))
		h.fail(w, r, http.StatusInternalServerError, metrics.ResultError, response.Error("internal error"))
		return
	}

	h.metrics.CheckoutSession(metrics.ResultOK)
	render.JSON(w, r, session)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, result string, body response.ErrorResponse) {
	h.metrics.CheckoutSession(result)
	render.Status(r, status)
	render.JSON(w, r, body)
}
