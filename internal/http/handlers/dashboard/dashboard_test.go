package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-checkout/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-checkout/internal/models"
	"github.com/magabrotheeeer/subscription-checkout/internal/storage"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Profile(ctx context.Context, userUID string) (*models.Profile, error) {
	args := m.Called(ctx, userUID)
	if res := args.Get(0); res != nil {
		return res.(*models.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestDashboardHandler(t *testing.T) {
	tests := []struct {
		name           string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "profile with subscription",
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("Profile", mock.Anything, "uid-1").Return(&models.Profile{
					UID: "uid-1", Email: "jenny@example.com", DisplayName: "Jenny Rosen",
					Subscription: &models.SubscriptionSummary{SubscriptionID: "sub_1", Plan: models.PlanMonthly, Status: models.StatusActive},
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"subscription":{"subscriptionId":"sub_1","plan":"monthly","status":"active"}`,
		},
		{
			name:    "greeting uses display name",
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("Profile", mock.Anything, "uid-1").Return(&models.Profile{
					UID: "uid-1", Email: "jenny@example.com", DisplayName: "Jenny Rosen",
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"greeting":"Jenny Rosen"`,
		},
		{
			name:    "greeting falls back to email",
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("Profile", mock.Anything, "uid-1").Return(&models.Profile{UID: "uid-1", Email: "jenny@example.com"}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"greeting":"jenny@example.com"`,
		},
		{
			name:    "profile without subscription",
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("Profile", mock.Anything, "uid-1").Return(&models.Profile{UID: "uid-1"}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"subscription":null`,
		},
		{
			name:           "no user",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:    "user deleted",
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("Profile", mock.Anything, "uid-1").Return(nil, storage.ErrNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"user not found"`,
		},
		{
			name:    "service error",
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("Profile", mock.Anything, "uid-1").Return(nil, errors.New("db down")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"internal error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.setupMock != nil {
				tt.setupMock(svc)
			}
			handler := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.userUID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
