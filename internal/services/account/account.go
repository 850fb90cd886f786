// Package account собирает данные дашборда пользователя.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-checkout/internal/cache"
	"github.com/magabrotheeeer/subscription-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-checkout/internal/models"
	"github.com/magabrotheeeer/subscription-checkout/internal/storage"
)

const (
	subscriptionTTL = 10 * time.Minute
	leaseTTL        = 30 * time.Second
)

// Repository чтение пользователя и его подписки.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetLatestSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Lease ставит метку чтения перед походом в базу.
	Lease(ctx context.Context, key string, ttl time.Duration) (string, error)
	// SetLeased сохраняет значение, если после Lease ключ не инвалидировали.
	SetLeased(ctx context.Context, key, token string, value any, expiration time.Duration) (bool, error)
}

// cachedSubscription хранит и отсутствие подписки, чтобы не ходить в базу повторно.
type cachedSubscription struct {
	Subscription *models.SubscriptionSummary `json:"subscription"`
}

// Service отдаёт профиль пользователя с кэшированием подписки.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, log: log}
}

// Profile возвращает профиль пользователя и его последнюю подписку.
// Ошибки кэша не прерывают запрос.
func (s *Service) Profile(ctx context.Context, userUID string) (*models.Profile, error) {
	const op = "account.Profile"

	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	summary, err := s.subscription(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.Profile{
		UID:          user.UID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		Subscription: summary,
	}, nil
}

func (s *Service) subscription(ctx context.Context, userUID string) (*models.SubscriptionSummary, error) {
	key := cache.UserSubscriptionKey(userUID)

	var cached cachedSubscription
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("cache get failed", slog.String("key", key), sl.Err(err))
	}
	if found {
		return cached.Subscription, nil
	}

	token, err := s.cache.Lease(ctx, key, leaseTTL)
	if err != nil {
		s.log.Warn("cache lease failed", slog.String("key", key), sl.Err(err))
	}

	sub, err := s.repo.GetLatestSubscription(ctx, userUID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		cached.Subscription = nil
	case err != nil:
		return nil, err
	default:
		cached.Subscription = sub.Summary()
	}

	if token == "" {
		return cached.Subscription, nil
	}
	// вебхук мог сбросить ключ, пока шло чтение: тогда прочитанное уже устарело
	stored, err := s.cache.SetLeased(ctx, key, token, cached, subscriptionTTL)
	switch {
	case err != nil:
		s.log.Warn("cache set failed", slog.String("key", key), sl.Err(err))
	case !stored:
		s.log.Debug("cache invalidated during read, value not stored", slog.String("key", key))
	}
	return cached.Subscription, nil
}
