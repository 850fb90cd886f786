package storage

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/subscription-checkout/internal/models"
)

// GetCustomerByUser возвращает клиента провайдера, привязанного к пользователю.
func (s *Storage) GetCustomerByUser(ctx context.Context, userUID string) (*models.Customer, error) {
	const op = "storage.GetCustomerByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT user_uid, customer_id, email, created_at
			  FROM customers WHERE user_uid = $1`
	c := &models.Customer{}
	err := s.DB.QueryRowContext(ctx, query, userUID).
		Scan(&c.UserUID, &c.CustomerID, &c.Email, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return c, nil
}

// SaveCustomer сохраняет привязку, если её ещё нет, и возвращает действующую запись.
// При гонке двух оформлений возвращается запись победителя.
func (s *Storage) SaveCustomer(ctx context.Context, customer models.Customer) (*models.Customer, error) {
	const op = "storage.SaveCustomer"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `INSERT INTO customers (user_uid, customer_id, email)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (user_uid) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query,
		customer.UserUID, customer.CustomerID, customer.Email); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return s.GetCustomerByUser(ctx, customer.UserUID)
}
