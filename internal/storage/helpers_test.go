package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/subscription-checkout/internal/migrations"
	"github.com/magabrotheeeer/subscription-checkout/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) *Storage {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, dsn)
	require.NoError(t, err)

	root, err := filepath.Abs("../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, filepath.Join(root, "migrations")))

	t.Cleanup(func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	return storage
}

// testDataFactory создаёт тестовые данные напрямую через хранилище.
type testDataFactory struct {
	storage *Storage
}

func (f *testDataFactory) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := f.storage.CreateUser(context.Background(), models.User{
		UID:          uuid.New().String(),
		Email:        email,
		DisplayName:  "Test User",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return u
}

func (f *testDataFactory) createPending(t *testing.T, userUID, customerID, subscriptionID string) {
	t.Helper()
	err := f.storage.CreatePendingSubscription(context.Background(), models.Subscription{
		SubscriptionID: subscriptionID,
		UserUID:        userUID,
		CustomerID:     customerID,
		Plan:           models.PlanMonthly,
	})
	require.NoError(t, err)
}

func (f *testDataFactory) status(t *testing.T, subscriptionID string) models.Status {
	t.Helper()
	var status models.Status
	err := f.storage.DB.QueryRowContext(context.Background(),
		`SELECT status FROM subscriptions WHERE subscription_id = $1`, subscriptionID).Scan(&status)
	require.NoError(t, err)
	return status
}

func (f *testDataFactory) planAndCustomer(t *testing.T, subscriptionID string) (models.PlanID, string) {
	t.Helper()
	var (
		plan       models.PlanID
		customerID string
	)
	err := f.storage.DB.QueryRowContext(context.Background(),
		`SELECT plan, customer_id FROM subscriptions WHERE subscription_id = $1`, subscriptionID).Scan(&plan, &customerID)
	require.NoError(t, err)
	return plan, customerID
}
