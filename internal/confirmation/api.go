package confirmation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/magabrotheeeer/subscription-checkout/internal/models"
)

// APIError ответ сервиса с ошибкой.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server responded %d: %s", e.StatusCode, e.Message)
}

// API клиент HTTP API сервиса оформления.
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI создаёт клиент для baseURL вида http://host/api/v1.
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// LoginResult токен и данные пользователя.
type LoginResult struct {
	Token       string `json:"token"`
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// PlansResult каталог и публикуемый ключ провайдера.
type PlansResult struct {
	PublishableKey string `json:"publishableKey"`
	Plans          []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		PriceText string `json:"priceText"`
	} `json:"plans"`
}

// Login выполняет вход по почте и паролю.
func (a *API) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	err := a.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Plans возвращает каталог планов.
func (a *API) Plans(ctx context.Context) (*PlansResult, error) {
	var out PlansResult
	if err := a.do(ctx, http.MethodGet, "/plans", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSession запрашивает секрет подтверждения для плана.
func (a *API) CreateSession(ctx context.Context, token, plan, email, userID string) (*models.CheckoutSession, error) {
	var out models.CheckoutSession
	err := a.do(ctx, http.MethodPost, "/checkout", token, map[string]string{
		"plan":      plan,
		"userEmail": email,
		"userId":    userID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) do(ctx context.Context, method, path, token string, body, out any) error {
	const op = "confirmation.API"

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s: %w", op, &APIError{StatusCode: resp.StatusCode, Message: e.Error})
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
