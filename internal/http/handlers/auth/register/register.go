// Package register реализует HTTP-обработчик регистрации по почте и паролю.
package register

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-checkout/internal/http/response"
	"github.com/magabrotheeeer/subscription-checkout/internal/lib/password"
	"github.com/magabrotheeeer/subscription-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-checkout/internal/models"
	services "github.com/magabrotheeeer/subscription-checkout/internal/services/auth"
	"github.com/magabrotheeeer/subscription-checkout/internal/storage"
)

// Request входные данные для регистрации
type Request struct {
	FullName       string `json:"fullName" validate:"required,max=100"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required"`
	RepeatPassword string `json:"repeatPassword" validate:"required"`
}

// Response данные созданного пользователя
type Response struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Service описывает регистрацию пользователя.
type Service interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
}

// Handler обрабатывает регистрацию.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Регистрация пользователя
// @Description Создаёт пользователя по имени, почте и паролю. Пароль и повтор должны совпадать, длина не меньше 5 символов.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные регистрации"
// @Success 201 {object} Response "Пользователь создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или пароль"
// @Failure 409 {object} response.ErrorResponse "Почта уже занята"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/signup [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	user, err := h.service.Register(r.Context(), services.RegisterInput{
		FullName:       req.FullName,
		Email:          req.Email,
		Password:       req.Password,
		RepeatPassword: req.RepeatPassword,
	})
	switch {
	case errors.Is(err, password.ErrMismatch), errors.Is(err, password.ErrTooShort), errors.Is(err, password.ErrTooLong):
		log.Warn("password rejected", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(err.Error()))
		return
	case errors.Is(err, storage.ErrUserExists):
		log.Warn("email already registered")
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("user already exists"))
		return
	case err != nil:
		log.Error("registration failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to register user"))
		return
	}

	log.Info("user registered", slog.String("user_uid", user.UID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, Response{
		UID:         user.UID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	})
}
