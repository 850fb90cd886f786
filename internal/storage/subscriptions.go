package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-checkout/internal/models"
)

// CreatePendingSubscription сохраняет только что созданную подписку в статусе incomplete.
// Повторная запись той же подписки ничего не меняет.
func (s *Storage) CreatePendingSubscription(ctx context.Context, sub models.Subscription) error {
	const op = "storage.CreatePendingSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO subscriptions (subscription_id, user_uid, customer_id, plan, status)
			  VALUES ($1, $2, $3, $4, 'incomplete')
			  ON CONFLICT (subscription_id) DO NOTHING`
	_, err := s.DB.ExecContext(ctx, query, sub.SubscriptionID, sub.UserUID, sub.CustomerID, sub.Plan)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return nil
}

// ActivateSubscription переводит подписку в active, создавая запись при необходимости.
// Отменённая подписка не активируется. Возвращает true, если запись изменилась:
// повтор активации с теми же планом и концом периода возвращает false.
func (s *Storage) ActivateSubscription(ctx context.Context, a models.Activation) (bool, error) {
	const op = "storage.ActivateSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	query := `INSERT INTO subscriptions
			      (subscription_id, user_uid, customer_id, plan, status, current_period_end)
			  VALUES ($1, $2, $3,
			      COALESCE(NULLIF($4, ''), (SELECT plan FROM subscriptions WHERE subscription_id = $1)),
			      'active', $5)
			  ON CONFLICT (subscription_id) DO UPDATE SET
			      status = 'active',
			      customer_id = COALESCE(NULLIF(EXCLUDED.customer_id, ''), subscriptions.customer_id),
			      plan = EXCLUDED.plan,
			      current_period_end = COALESCE(EXCLUDED.current_period_end, subscriptions.current_period_end),
			      updated_at = NOW()
			  WHERE subscriptions.status <> 'canceled'
			    AND subscriptions.user_uid = EXCLUDED.user_uid
			    AND (subscriptions.status <> 'active'
			      OR subscriptions.plan IS DISTINCT FROM EXCLUDED.plan
			      OR (EXCLUDED.current_period_end IS NOT NULL
			        AND subscriptions.current_period_end IS DISTINCT FROM EXCLUDED.current_period_end))`
	res, err := s.DB.ExecContext(ctx, query,
		a.SubscriptionID, a.UserUID, a.CustomerID, string(a.Plan), nullTime(a.CurrentPeriodEnd))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// CancelSubscription отменяет подписки клиента провайдера. Если subscriptionID не пуст,
// отменяется только она. Возвращает UID пользователей, чьи подписки изменились;
// повторная отмена возвращает пустой список.
func (s *Storage) CancelSubscription(ctx context.Context, customerID, subscriptionID string, at time.Time) ([]string, error) {
	const op = "storage.CancelSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `UPDATE subscriptions
			  SET status = 'canceled', canceled_at = $3, updated_at = NOW()
			  WHERE customer_id = $1
			    AND ($2 = '' OR subscription_id = $2)
			    AND status <> 'canceled'
			  RETURNING user_uid`
	rows, err := s.DB.QueryContext(ctx, query, customerID, subscriptionID, at)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	defer func() {
		_ = rows.Close()
	}()

	var users []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// GetLatestSubscription возвращает последнюю изменённую подписку пользователя.
func (s *Storage) GetLatestSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetLatestSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT subscription_id, user_uid, customer_id, plan, status,
			      current_period_end, canceled_at, created_at, updated_at
			  FROM subscriptions WHERE user_uid = $1
			  ORDER BY updated_at DESC LIMIT 1`
	sub := &models.Subscription{}
	var periodEnd, canceledAt sql.NullTime
	err := s.DB.QueryRowContext(ctx, query, userUID).Scan(
		&sub.SubscriptionID, &sub.UserUID, &sub.CustomerID, &sub.Plan, &sub.Status,
		&periodEnd, &canceledAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}
	if canceledAt.Valid {
		sub.CanceledAt = &canceledAt.Time
	}
	return sub, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
