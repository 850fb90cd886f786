// Package services содержит логику бизнес-уровня для работы с пользователями и аутентификацией.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/subscription-checkout/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-checkout/internal/lib/password"
	"github.com/magabrotheeeer/subscription-checkout/internal/models"
	"github.com/magabrotheeeer/subscription-checkout/internal/storage"
)

// ErrInvalidCredentials неверная почта или пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// CreateUser сохраняет нового пользователя. Занятая почта возвращает storage.ErrUserExists.
	CreateUser(ctx context.Context, user models.User) (*models.User, error)

	// GetUserByEmail возвращает пользователя по почте или storage.ErrNotFound.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// RegisterInput данные формы регистрации.
type RegisterInput struct {
	FullName       string
	Email          string
	Password       string
	RepeatPassword string
}

// Session результат успешного входа.
type Session struct {
	Token string
	User  *models.User
}

// AuthService отвечает за регистрацию и вход по почте и паролю.
type AuthService struct {
	users    UserRepository
	jwtMaker jwt.Maker
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, jwtMaker jwt.Maker) *AuthService {
	return &AuthService{
		users:    users,
		jwtMaker: jwtMaker,
	}
}

// Register проверяет пароль и его повтор, хэширует пароль и создаёт пользователя.
// Ошибки проверки пароля возвращаются как password.ErrMismatch и password.ErrTooShort.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	const op = "services.auth.Register"

	if err := password.Validate(in.Password, in.RepeatPassword); err != nil {
		return nil, err
	}
	hashed, err := password.GetHash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user := models.User{
		UID:          uuid.NewString(),
		Email:        normalizeEmail(in.Email),
		DisplayName:  strings.TrimSpace(in.FullName),
		PasswordHash: hashed,
	}
	created, err := s.users.CreateUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// Login проверяет пароль пользователя и выпускает JWT.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (*Session, error) {
	const op = "services.auth.Login"

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return nil, ErrInvalidCredentials
	}
	token, err := s.jwtMaker.GenerateToken(user.UID, user.Email, user.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Session{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
