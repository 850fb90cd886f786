// Package stripetest содержит поддельный API Stripe и подпись вебхуков для тестов.
package stripetest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// Sign строит заголовок Stripe-Signature для тела вебхука.
func Sign(payload []byte, secret string, ts time.Time) string {
	unix := ts.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", unix)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", unix, hex.EncodeToString(mac.Sum(nil)))
}

// Event собирает тело события вебхука.
func Event(id, eventType string, object any) []byte {
	body, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     time.Now().Unix(),
		"api_version": "2025-03-31.basil",
		"data":        map[string]any{"object": object},
	})
	if err != nil {
		panic(err)
	}
	return body
}

// Server поддельный API Stripe: клиенты, подписки и подтверждение платежа.
type Server struct {
	*httptest.Server

	mu sync.Mutex
	// OmitConfirmationSecret подписка создаётся без секрета подтверждения.
	OmitConfirmationSecret bool
	// FailSubscriptions создание подписки отвечает ошибкой 400.
	FailSubscriptions bool
	// ConfirmStatus статус платежа после подтверждения, по умолчанию succeeded.
	ConfirmStatus string
	// DeclineCard подтверждение отвечает отказом карты.
	DeclineCard bool
	// PeriodEnd конец периода у позиций подписки.
	PeriodEnd time.Time

	customers      int
	subscriptions  int
	confirms       int
	customerForms  []map[string]string
	idempotency    []string
	subscriptionDB map[string]map[string]any
}

// NewServer запускает сервер и останавливает его по завершении теста.
func NewServer(t *testing.T) *Server {
	s := &Server{
		ConfirmStatus:  "succeeded",
		PeriodEnd:      time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		subscriptionDB: map[string]map[string]any{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/customers", s.createCustomer)
	mux.HandleFunc("POST /v1/subscriptions", s.createSubscription)
	mux.HandleFunc("GET /v1/subscriptions/{id}", s.getSubscription)
	mux.HandleFunc("POST /v1/payment_intents/{id}/confirm", s.confirm)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Customers число созданных клиентов.
func (s *Server) Customers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers
}

// Subscriptions число созданных подписок.
func (s *Server) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscriptions
}

// Confirms число подтверждений платежа.
func (s *Server) Confirms() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirms
}

// LastCustomerForm поля последнего запроса на создание клиента.
func (s *Server) LastCustomerForm() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.customerForms) == 0 {
		return nil
	}
	return s.customerForms[len(s.customerForms)-1]
}

// IdempotencyKeys ключи идемпотентности запросов на создание клиента.
func (s *Server) IdempotencyKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.idempotency...)
}

func formValues(r *http.Request) map[string]string {
	_ = r.ParseForm()
	out := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		out[k] = r.PostForm.Get(k)
	}
	return out
}

// expands проверяет запрос на раскрытие поля, в любой форме ключа expand.
func expands(r *http.Request, field string) bool {
	for k, vs := range r.PostForm {
		if !strings.HasPrefix(k, "expand") {
			continue
		}
		for _, v := range vs {
			if v == field {
				return true
			}
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func stripeError(w http.ResponseWriter, status int, errType, code, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"type": errType, "code": code, "message": msg},
	})
}

func (s *Server) createCustomer(w http.ResponseWriter, r *http.Request) {
	form := formValues(r)
	s.mu.Lock()
	s.customers++
	id := fmt.Sprintf("cus_test_%d", s.customers)
	s.customerForms = append(s.customerForms, form)
	s.idempotency = append(s.idempotency, r.Header.Get("Idempotency-Key"))
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"id":       id,
		"object":   "customer",
		"email":    form["email"],
		"metadata": map[string]string{"firebaseUid": form["metadata[firebaseUid]"]},
	})
}

func (s *Server) createSubscription(w http.ResponseWriter, r *http.Request) {
	form := formValues(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSubscriptions {
		stripeError(w, http.StatusBadRequest, "invalid_request_error", "resource_missing",
			"No such price: '"+form["items[0][price]"]+"'")
		return
	}

	s.subscriptions++
	id := fmt.Sprintf("sub_test_%d", s.subscriptions)
	invoice := map[string]any{"id": fmt.Sprintf("in_test_%d", s.subscriptions), "object": "invoice"}
	if !s.OmitConfirmationSecret && expands(r, "latest_invoice.confirmation_secret") {
		invoice["confirmation_secret"] = map[string]any{
			"client_secret": fmt.Sprintf("pi_test_%d_secret_abc", s.subscriptions),
			"type":          "payment_intent",
		}
	}
	sub := map[string]any{
		"id":       id,
		"object":   "subscription",
		"customer": form["customer"],
		"status":   "incomplete",
		"metadata": map[string]string{
			"firebaseUid": form["metadata[firebaseUid]"],
			"plan":        form["metadata[plan]"],
		},
		"items": map[string]any{
			"object": "list",
			"data": []map[string]any{{
				"id":                 "si_" + id,
				"object":             "subscription_item",
				"price":              map[string]any{"id": form["items[0][price]"], "object": "price"},
				"current_period_end": s.PeriodEnd.Unix(),
			}},
		},
	}
	s.subscriptionDB[id] = sub

	resp := make(map[string]any, len(sub)+1)
	for k, v := range sub {
		resp[k] = v
	}
	resp["latest_invoice"] = invoice
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptionDB[r.PathValue("id")]
	if !ok {
		stripeError(w, http.StatusNotFound, "invalid_request_error", "resource_missing", "No such subscription")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request) {
	form := formValues(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirms++

	id := r.PathValue("id")
	if !strings.HasPrefix(form["client_secret"], id+"_secret_") {
		stripeError(w, http.StatusBadRequest, "invalid_request_error", "", "client_secret does not match")
		return
	}
	if s.DeclineCard {
		stripeError(w, http.StatusPaymentRequired, "card_error", "card_declined", "Your card was declined.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"object": "payment_intent",
		"status": s.ConfirmStatus,
	})
}
