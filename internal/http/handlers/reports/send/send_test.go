package send

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/stock-alerts/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
	"github.com/magabrotheeeer/stock-alerts/internal/services/scheduler"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) SendNow(ctx context.Context, kind scheduler.Kind, id int64) (models.Outcome, error) {
	args := m.Called(ctx, kind, id)
	return args.Get(0).(models.Outcome), args.Error(1)
}

func newRequest(kind string, id int64) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/"+kind+"/1", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("kind", kind)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middlewarectx.MerchantID, id)
	return req.WithContext(ctx)
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name           string
		kind           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "weekly",
			kind: "weekly",
			setupMock: func(m *MockService) {
				m.On("SendNow", mock.Anything, scheduler.KindWeekly, int64(1)).
					Return(models.Outcome{DispatchID: "d-1", MerchantID: 1, Succeeded: 2}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"succeeded":2`,
		},
		{
			name:           "unknown report kind",
			kind:           "daily",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `unknown report kind`,
		},
		{
			name: "no subscription",
			kind: "monthly",
			setupMock: func(m *MockService) {
				m.On("SendNow", mock.Anything, scheduler.KindMonthly, int64(1)).
					Return(models.Outcome{}, fmt.Errorf("scheduler.SendNow: %w", models.ErrSubscriptionNotFound))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `subscription not found`,
		},
		{
			name: "store error",
			kind: "monthly",
			setupMock: func(m *MockService) {
				m.On("SendNow", mock.Anything, scheduler.KindMonthly, int64(1)).
					Return(models.Outcome{}, errors.New("db"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not send report`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, newRequest(tt.kind, 1))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
