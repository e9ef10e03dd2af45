package telegramhook

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

	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

type MockLinker struct {
	mock.Mock
}

func (m *MockLinker) ResolveLinkToken(token string) (int64, error) {
	args := m.Called(token)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLinker) LinkTelegram(ctx context.Context, id int64, chatID string) (int, bool, error) {
	args := m.Called(ctx, id, chatID)
	return args.Int(0), args.Bool(1), args.Error(2)
}

type MockReplier struct {
	mock.Mock
}

func (m *MockReplier) Reply(ctx context.Context, chatID int64, text string) error {
	return m.Called(ctx, chatID, text).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func update(text string) string {
	return `{"update_id":1,"message":{"message_id":2,"date":0,"chat":{"id":555,"type":"private"},"text":"` + text + `"}}`
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		setupMock func(*MockLinker, *MockReplier)
	}{
		{
			name: "chat linked",
			body: update("/start tok"),
			setupMock: func(l *MockLinker, r *MockReplier) {
				l.On("ResolveLinkToken", "tok").Return(int64(9), nil).Once()
				l.On("LinkTelegram", mock.Anything, int64(9), "555").Return(2, true, nil).Once()
				r.On("Reply", mock.Anything, int64(555), "✅ تم ربط حسابك بنجاح! ستتلقى التنبيهات هنا.\n(الحسابات المتصلة: 2)").Return(nil).Once()
			},
		},
		{
			name: "already linked",
			body: update("/start tok"),
			setupMock: func(l *MockLinker, r *MockReplier) {
				l.On("ResolveLinkToken", "tok").Return(int64(9), nil).Once()
				l.On("LinkTelegram", mock.Anything, int64(9), "555").Return(1, false, nil).Once()
				r.On("Reply", mock.Anything, int64(555), MsgAlreadyLinked).Return(nil).Once()
			},
		},
		{
			name: "plan limit",
			body: update("/start tok"),
			setupMock: func(l *MockLinker, r *MockReplier) {
				l.On("ResolveLinkToken", "tok").Return(int64(9), nil).Once()
				l.On("LinkTelegram", mock.Anything, int64(9), "555").Return(1, false, models.ErrRecipientLimit).Once()
				r.On("Reply", mock.Anything, int64(555), MsgLimitReached).Return(nil).Once()
			},
		},
		{
			name: "bad token",
			body: update("/start 123"),
			setupMock: func(l *MockLinker, r *MockReplier) {
				l.On("ResolveLinkToken", "123").Return(int64(0), errors.New("invalid")).Once()
				r.On("Reply", mock.Anything, int64(555), MsgNotFound).Return(nil).Once()
			},
		},
		{
			name: "start without token",
			body: update("/start"),
			setupMock: func(_ *MockLinker, r *MockReplier) {
				r.On("Reply", mock.Anything, int64(555), MsgWelcome).Return(errors.New("telegram down")).Once()
			},
		},
		{
			name:      "plain message",
			body:      update("hello"),
			setupMock: func(*MockLinker, *MockReplier) {},
		},
		{
			name:      "broken json",
			body:      `{"update_id":`,
			setupMock: func(*MockLinker, *MockReplier) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			linker, replier := new(MockLinker), new(MockReplier)
			tt.setupMock(linker, replier)
			h := New(newNoopLogger(), linker, replier)

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusOK, rr.Code)
			linker.AssertExpectations(t)
			replier.AssertExpectations(t)
		})
	}
}
