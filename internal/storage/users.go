package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/subscription-checkout/internal/models"
)

// CreateUser сохраняет нового пользователя.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `INSERT INTO users (uid, email, display_name, password_hash)
			  VALUES ($1, $2, $3, $4)
			  RETURNING created_at`
	err := s.DB.QueryRowContext(ctx, query,
		user.UID, user.Email, user.DisplayName, user.PasswordHash).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return nil, fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// GetUserByEmail возвращает пользователя по почте.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	return s.getUser(ctx, op, `SELECT uid, email, display_name, password_hash, created_at
			  FROM users WHERE email = $1`, email)
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	return s.getUser(ctx, op, `SELECT uid, email, display_name, password_hash, created_at
			  FROM users WHERE uid = $1`, userUID)
}

func (s *Storage) getUser(ctx context.Context, op, query string, arg string) (*models.User, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	u := &models.User{}
	err := s.DB.QueryRowContext(ctx, query, arg).
		Scan(&u.UID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}
