// Консольный клиент оплаты: входит в сервис, запрашивает сессию оформления
// и подтверждает первый платёж тестовым способом оплаты.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/subscription-checkout/internal/config"
	"github.com/magabrotheeeer/subscription-checkout/internal/confirmation"
	"github.com/magabrotheeeer/subscription-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-checkout/internal/paymentprovider"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("checkout failed", sl.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	api := confirmation.NewAPI(cfg.ServerURL, &http.Client{Timeout: cfg.Timeout})

	login, err := api.Login(ctx, cfg.Email, cfg.Password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	catalog, err := api.Plans(ctx)
	if err != nil {
		return fmt.Errorf("plans: %w", err)
	}
	for _, p := range catalog.Plans {
		fmt.Printf("%-10s %-20s %s\n", p.ID, p.Name, p.PriceText)
	}

	session, err := api.CreateSession(ctx, login.Token, cfg.Plan, login.Email, login.UID)
	if err != nil {
		var apiErr *confirmation.APIError
		if errors.As(err, &apiErr) {
			fmt.Println(apiErr.Message)
		}
		return fmt.Errorf("create session: %w", err)
	}
	logger.Info("checkout session created",
		slog.String("customer_id", session.CustomerID),
		slog.String("subscription_id", session.SubscriptionID))

	publishableKey := cfg.PublishableKey
	if publishableKey == "" {
		publishableKey = catalog.PublishableKey
	}
	form := confirmation.New(session.ClientSecret,
		paymentprovider.NewConfirmer(publishableKey, cfg.StripeAPIURL, logger), logger)

	result, err := form.Submit(ctx, confirmation.Form{
		Name:            cfg.Name,
		BusinessName:    cfg.BusinessName,
		Plan:            cfg.Plan,
		PaymentMethodID: cfg.PaymentMethodID,
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fmt.Println(result.Message)
	if result.Outcome == confirmation.OutcomeFailed {
		return errors.New("payment was not confirmed")
	}
	return nil
}
