package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/stock-alerts/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Settings(ctx context.Context, id int64) (models.Settings, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Settings), args.Error(1)
}

func (m *MockService) UpdateSettings(ctx context.Context, id int64, s models.Settings) (*models.Merchant, error) {
	args := m.Called(ctx, id, s)
	if res := args.Get(0); res != nil {
		return res.(*models.Merchant), args.Error(1)
	}
	return nil, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func withMerchant(r *http.Request, id int64) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middlewarectx.MerchantID, id))
}

func TestRead(t *testing.T) {
	svc := new(MockService)
	svc.On("Settings", mock.Anything, int64(3)).Return(models.Settings{AlertThreshold: 5, NotifyEmail: true}, nil).Once()
	svc.On("Settings", mock.Anything, int64(4)).Return(models.Settings{}, errors.New("db")).Once()
	h := New(newNoopLogger(), svc)

	rr := httptest.NewRecorder()
	h.Read(rr, withMerchant(httptest.NewRequest(http.MethodGet, "/", nil), 3))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"alert_threshold":5`)

	rr = httptest.NewRecorder()
	h.Read(rr, withMerchant(httptest.NewRequest(http.MethodGet, "/", nil), 4))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "successful update",
			body: `{"alert_threshold":3,"alert_email":"a@b.co","notify_email":true,"telegram_chat_ids":["100"]}`,
			setupMock: func(m *MockService) {
				m.On("UpdateSettings", mock.Anything, int64(1), models.Settings{
					AlertThreshold: 3, AlertEmail: "a@b.co", NotifyEmail: true, TelegramChats: []string{"100"},
				}).Return(&models.Merchant{ID: 1, AlertThreshold: 3, AlertEmail: "a@b.co", NotifyEmail: true}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"alert_threshold":3`,
		},
		{
			name:           "invalid email",
			body:           `{"alert_threshold":3,"alert_email":"nope"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `field AlertEmail must be a valid email`,
		},
		{
			name:           "negative threshold",
			body:           `{"alert_threshold":-1}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `must not be negative`,
		},
		{
			name:           "chat id is not numeric",
			body:           `{"telegram_chat_ids":["@channel"]}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `can contain only numbers`,
		},
		{
			name:           "broken json",
			body:           `{"alert_threshold":`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `failed to decode request`,
		},
		{
			name: "plan limit",
			body: `{"telegram_chat_ids":["1","2"]}`,
			setupMock: func(m *MockService) {
				m.On("UpdateSettings", mock.Anything, int64(1), mock.Anything).Return(nil, models.ErrRecipientLimit).Once()
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `plan limit`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			h := New(newNoopLogger(), svc)

			rr := httptest.NewRecorder()
			h.Update(rr, withMerchant(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body)), 1))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
