package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/magabrotheeeer/stock-alerts/internal/config"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	args := m.Called(to.Recipient(), what)
	if msg := args.Get(0); msg != nil {
		return msg.(*tele.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestChannel_Recipients(t *testing.T) {
	c := NewWithSender(new(MockSender), 0, newNoopLogger())
	m := models.NewMerchant(1, time.Now())
	m.TelegramChats = models.NewRecipientSet("10", "20")

	assert.Equal(t, []string{"10", "20"}, c.Recipients(m))

	m.NotifyTelegram = false
	assert.Empty(t, c.Recipients(m))
}

func TestChannel_Validate(t *testing.T) {
	c := NewWithSender(new(MockSender), 0, newNoopLogger())

	tests := []struct {
		name      string
		recipient string
		wantErr   bool
	}{
		{name: "private chat", recipient: "123456789"},
		{name: "group", recipient: "-1001234567890"},
		{name: "phone number", recipient: "+966500000000", wantErr: true},
		{name: "email", recipient: "owner@shop.test", wantErr: true},
		{name: "empty", recipient: "", wantErr: true},
		{name: "zero", recipient: "0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Validate(tt.recipient)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidRecipient)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChannel_Send(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", "42", "hello").Return(&tele.Message{ID: 1}, nil).Once()
	sender.On("Send", "43", "hello").Return(nil, errors.New("chat not found")).Once()

	c := NewWithSender(sender, 0, newNoopLogger())
	msg := models.Message{Kind: "alert", Text: "hello"}

	require.NoError(t, c.Send(context.Background(), "42", msg))
	assert.ErrorContains(t, c.Send(context.Background(), "43", msg), "chat not found")
	assert.ErrorIs(t, c.Send(context.Background(), "abc", msg), models.ErrInvalidRecipient)

	sender.AssertExpectations(t)
}

func TestChannel_SendThroughBotAPI(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/bot123:abc/sendMessage"), r.URL.Path)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if body["chat_id"] == "500" {
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":1700000000,"chat":{"id":42,"type":"private"},"text":"hi"}}`)
	}))
	defer srv.Close()

	c, err := New(config.Telegram{Token: "123:abc", APIURL: srv.URL, Timeout: 2 * time.Second}, newNoopLogger())
	require.NoError(t, err)

	require.NoError(t, c.Send(context.Background(), "42", models.Message{Text: "hi"}))
	assert.Error(t, c.Send(context.Background(), "500", models.Message{Text: "hi"}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Equal(t, "42", bodies[0]["chat_id"])
	assert.Equal(t, "hi", bodies[0]["text"])
}

func TestNew_EmptyToken(t *testing.T) {
	c, err := New(config.Telegram{}, newNoopLogger())
	assert.Error(t, err)
	assert.Nil(t, c)
}

func TestStartCommand(t *testing.T) {
	update := func(text string) tele.Update {
		return tele.Update{Message: &tele.Message{Text: text, Chat: &tele.Chat{ID: 99}}}
	}

	chatID, payload, err := StartCommand(update("/start token-value"))
	require.NoError(t, err)
	assert.Equal(t, int64(99), chatID)
	assert.Equal(t, "token-value", payload)

	_, payload, err = StartCommand(update("/start@stock_bot"))
	require.NoError(t, err)
	assert.Empty(t, payload)

	_, _, err = StartCommand(update("hello"))
	assert.ErrorIs(t, err, ErrNotCommand)

	_, _, err = StartCommand(tele.Update{})
	assert.ErrorIs(t, err, ErrNotCommand)
}
