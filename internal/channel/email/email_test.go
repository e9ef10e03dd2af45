package email

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/stock-alerts/internal/config"
	"github.com/magabrotheeeer/stock-alerts/internal/models"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect(ctx context.Context) (Client, error) {
	args := m.Called(ctx)
	if c := args.Get(0); c != nil {
		return c.(Client), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTransport) From() string {
	return m.Called().String(0)
}

type bufferCloser struct {
	bytes.Buffer
}

func (b *bufferCloser) Close() error { return nil }

type MockClient struct {
	mock.Mock
	body bufferCloser
}

func (m *MockClient) Mail(from string) error { return m.Called(from).Error(0) }
func (m *MockClient) Rcpt(to string) error   { return m.Called(to).Error(0) }
func (m *MockClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Error(0) != nil {
		return nil, args.Error(0)
	}
	return &m.body, nil
}
func (m *MockClient) Quit() error  { return m.Called().Error(0) }
func (m *MockClient) Close() error { return nil }

func TestChannel_Send(t *testing.T) {
	client := new(MockClient)
	client.On("Mail", "alerts@app.test").Return(nil)
	client.On("Rcpt", "owner@shop.test").Return(nil)
	client.On("Data").Return(nil)
	client.On("Quit").Return(nil)

	transport := new(MockTransport)
	transport.On("Connect", mock.Anything).Return(client, nil)
	transport.On("From").Return("alerts@app.test")

	c := New(transport, newNoopLogger())
	err := c.Send(context.Background(), "owner@shop.test", models.Message{
		Subject: "تنبيه",
		Text:    "line1\nline2",
	})
	require.NoError(t, err)

	body := client.body.String()
	assert.Contains(t, body, "To: owner@shop.test\r\n")
	assert.Contains(t, body, "Subject: =?utf-8?q?")
	assert.True(t, strings.HasSuffix(body, "line1\r\nline2"))
	client.AssertExpectations(t)
}

func TestChannel_SendErrors(t *testing.T) {
	t.Run("dial error", func(t *testing.T) {
		transport := new(MockTransport)
		transport.On("Connect", mock.Anything).Return(nil, errors.New("dial tcp: timeout"))

		err := New(transport, newNoopLogger()).Send(context.Background(), "owner@shop.test", models.Message{Text: "x"})
		assert.ErrorContains(t, err, "timeout")
	})

	t.Run("recipient rejected", func(t *testing.T) {
		client := new(MockClient)
		client.On("Mail", mock.Anything).Return(nil)
		client.On("Rcpt", "owner@shop.test").Return(errors.New("550 no such user"))

		transport := new(MockTransport)
		transport.On("Connect", mock.Anything).Return(client, nil)
		transport.On("From").Return("alerts@app.test")

		err := New(transport, newNoopLogger()).Send(context.Background(), "owner@shop.test", models.Message{Text: "x"})
		assert.ErrorContains(t, err, "550")
		client.AssertNotCalled(t, "Data")
	})

	t.Run("invalid address", func(t *testing.T) {
		transport := new(MockTransport)
		err := New(transport, newNoopLogger()).Send(context.Background(), "not-an-email", models.Message{Text: "x"})
		assert.ErrorIs(t, err, models.ErrInvalidRecipient)
		transport.AssertNotCalled(t, "Connect", mock.Anything)
	})
}

func TestChannel_RecipientsAndValidate(t *testing.T) {
	c := New(new(MockTransport), newNoopLogger())
	m := models.NewMerchant(1, time.Now())

	assert.Empty(t, c.Recipients(m), "no address configured")

	m.AlertEmail = "owner@shop.test"
	assert.Equal(t, []string{"owner@shop.test"}, c.Recipients(m))

	m.NotifyEmail = false
	assert.Empty(t, c.Recipients(m))

	assert.NoError(t, c.Validate("owner@shop.test"))
	assert.ErrorIs(t, c.Validate("123456"), models.ErrInvalidRecipient)
	assert.ErrorIs(t, c.Validate("Owner <owner@shop.test>"), models.ErrInvalidRecipient)
}

func TestSMTPTransport_DialTimeout(t *testing.T) {
	tr := NewTransport(config.SMTP{Host: "127.0.0.1", Port: "1", Timeout: 200 * time.Millisecond}, newNoopLogger())
	client, err := tr.Connect(context.Background())
	assert.Nil(t, client)
	assert.Error(t, err)
	assert.Equal(t, "", tr.From())
}
